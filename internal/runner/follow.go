package runner

import (
	"context"
	"io"
	"os"
	"time"
)

const (
	// followReplayBytes is how much existing output a new follower replays
	// before switching to appended output.
	followReplayBytes  = 1024
	followPollInterval = 500 * time.Millisecond
)

// followReader streams a log file from its recent tail and then follows
// appended bytes. The file is reopened on every read, so a log that does
// not exist yet or gets recreated by the wrapper is picked up in place.
type followReader struct {
	ctx    context.Context
	path   string
	offset int64
	poll   time.Duration
}

func newFollowReader(ctx context.Context, path string) *followReader {
	r := &followReader{ctx: ctx, path: path, poll: followPollInterval}
	if info, err := os.Stat(path); err == nil && info.Size() > followReplayBytes {
		r.offset = info.Size() - followReplayBytes
	}
	return r
}

// Read returns the next chunk of output, blocking until the file grows or
// ctx ends. It never returns a zero count with a nil error.
func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.readAvailable(p)
		if n > 0 || err != nil {
			return n, err
		}
		select {
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

// readAvailable reads past the current offset. A missing file means no
// output yet, not an error.
func (r *followReader) readAvailable(p []byte) (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() < r.offset {
		// The wrapper recreated the file; start over.
		r.offset = 0
	}
	if info.Size() == r.offset {
		return 0, nil
	}

	n, err := f.ReadAt(p, r.offset)
	if n > 0 {
		r.offset += int64(n)
		return n, nil
	}
	if err == io.EOF {
		return 0, nil
	}
	return 0, err
}

func (r *followReader) Close() error { return nil }
