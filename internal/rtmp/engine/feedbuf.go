package engine

import "io"

// feedBuffer is a growable byte buffer that supports speculative reads: a
// caller can checkpoint the current read offset, attempt to parse from it via
// the io.Reader interface, and restore the offset if parsing failed for lack
// of data rather than losing the unconsumed bytes. This is what lets the
// blocking-style teacher parsers (chunk.Reader, raw handshake byte slicing)
// run unmodified against data that arrives in arbitrary-sized Feed() calls.
type feedBuffer struct {
	buf []byte
	off int
}

func (f *feedBuffer) append(b []byte) {
	f.buf = append(f.buf, b...)
}

func (f *feedBuffer) remaining() int {
	return len(f.buf) - f.off
}

func (f *feedBuffer) checkpoint() int {
	return f.off
}

func (f *feedBuffer) restore(off int) {
	f.off = off
}

// compact drops already-consumed bytes so the backing array doesn't grow
// without bound across a long-lived connection.
func (f *feedBuffer) compact() {
	if f.off == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.off:])
	f.buf = f.buf[:n]
	f.off = 0
}

// Read implements io.Reader. It returns io.EOF once the buffered bytes are
// exhausted rather than blocking for more; callers (chunk.Reader) already
// treat io.EOF/io.ErrUnexpectedEOF as "need more data" and Protocol.Feed uses
// that same signal to know when to stop and wait for the next Feed call.
func (f *feedBuffer) Read(p []byte) (int, error) {
	if f.off >= len(f.buf) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.off:])
	f.off += n
	return n, nil
}
