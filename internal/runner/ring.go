package runner

// tailBuffer is a fixed-capacity ring that keeps the newest bytes written
// to it. TailLog streams arbitrarily large logs through one, so memory
// stays bounded by the requested tail size.
type tailBuffer struct {
	buf   []byte
	start int
	n     int
}

func newTailBuffer(capacity int) *tailBuffer {
	if capacity <= 0 {
		capacity = 512
	}
	return &tailBuffer{buf: make([]byte, capacity)}
}

// Write keeps the final capacity bytes of everything written so far. It
// never fails; the signature satisfies io.Writer for use with io.Copy.
func (b *tailBuffer) Write(p []byte) (int, error) {
	written := len(p)
	if len(p) >= len(b.buf) {
		copy(b.buf, p[len(p)-len(b.buf):])
		b.start = 0
		b.n = len(b.buf)
		return written, nil
	}

	end := (b.start + b.n) % len(b.buf)
	first := copy(b.buf[end:], p)
	copy(b.buf, p[first:])

	b.n += len(p)
	if b.n > len(b.buf) {
		b.start = (b.start + b.n - len(b.buf)) % len(b.buf)
		b.n = len(b.buf)
	}
	return written, nil
}

// Bytes reassembles the retained tail in write order.
func (b *tailBuffer) Bytes() []byte {
	out := make([]byte, b.n)
	first := copy(out, b.buf[b.start:min(b.start+b.n, len(b.buf))])
	copy(out[first:], b.buf[:b.n-first])
	return out
}

// Len reports how many bytes are retained.
func (b *tailBuffer) Len() int {
	return b.n
}
