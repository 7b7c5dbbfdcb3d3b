package runner

import (
	"io"
	"os"
)

// tailFile returns up to the last n bytes of the file, streamed through a
// fixed ring so even huge logs cost tail-sized memory.
func tailFile(path string, n int64) (string, error) {
	if n <= 0 {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ring := newTailBuffer(int(n))
	if _, err := io.Copy(ring, f); err != nil {
		return "", err
	}
	return string(ring.Bytes()), nil
}
