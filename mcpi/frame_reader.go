package mcpi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/valyala/bytebufferpool"
)

const (
	// DefaultMaxFrameSize is the longest line a FrameReader accepts by default.
	DefaultMaxFrameSize = 1 << 20

	minReadSize = 512
)

// FrameReader extracts newline delimited frames from a stream.
//
// It keeps one growable buffer: bytes after the last extracted frame stay
// buffered for the next call. A FrameReader is not goroutine-safe; only the
// owner of the stream may read frames.
type FrameReader struct {
	r            io.Reader
	buf          *bytebufferpool.ByteBuffer
	off          int // start of unread bytes in buf.B
	scanned      int // unread bytes already known to hold no line feed
	maxFrameSize int
	pendingErr   error
}

// NewFrameReader creates a FrameReader reading from r. A maxFrameSize of zero
// or less selects DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxFrameSize int) *FrameReader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &FrameReader{
		r:            r,
		buf:          bytebufferpool.Get(),
		maxFrameSize: maxFrameSize,
	}
}

// ReadFrame returns the next frame without its line feed, reading from the
// stream until a complete frame is buffered.
//
// A read that returns no data together with io.EOF, or no data and no error,
// means the peer closed the stream and yields ErrConnClosed. Other read errors
// are returned wrapped in ErrTransport; deadline errors keep
// os.ErrDeadlineExceeded in the chain.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if frame, ok := fr.NextBufferedFrame(); ok {
			if len(frame) > fr.maxFrameSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
			}

			return frame, nil
		}

		if fr.Buffered() >= fr.maxFrameSize {
			return nil, fmt.Errorf("%w: %d bytes without line feed", ErrFrameTooLarge, fr.Buffered())
		}

		if err := fr.fill(); err != nil {
			return nil, err
		}
	}
}

// NextBufferedFrame extracts a frame from already buffered bytes without
// touching the stream. It reports false when no complete frame is buffered.
func (fr *FrameReader) NextBufferedFrame() ([]byte, bool) {
	if fr.buf == nil {
		return nil, false
	}

	unread := fr.buf.B[fr.off:]
	idx := bytes.IndexByte(unread[fr.scanned:], '\n')
	if idx < 0 {
		fr.scanned = len(unread)
		return nil, false
	}
	idx += fr.scanned

	frame := bytes.Clone(unread[:idx])
	if frame == nil {
		frame = []byte{}
	}

	fr.off += idx + 1
	fr.scanned = 0
	if fr.off == len(fr.buf.B) {
		fr.buf.Reset()
		fr.off = 0
	}

	return frame, true
}

// Buffered returns the number of bytes read from the stream but not yet
// returned as part of a frame.
func (fr *FrameReader) Buffered() int {
	if fr.buf == nil {
		return 0
	}

	return len(fr.buf.B) - fr.off
}

// Release returns the buffer to the pool. The reader must not be used
// afterwards; ReadFrame then fails with ErrConnClosed.
func (fr *FrameReader) Release() {
	if fr.buf == nil {
		return
	}

	bytebufferpool.Put(fr.buf)
	fr.buf = nil
	fr.off = 0
	fr.scanned = 0
	fr.pendingErr = ErrConnClosed
}

// fill performs one read from the stream and appends the result.
func (fr *FrameReader) fill() error {
	if fr.pendingErr != nil {
		err := fr.pendingErr
		if !errors.Is(err, ErrConnClosed) {
			fr.pendingErr = nil
		}

		return err
	}

	fr.compact()

	b := fr.buf.B
	if cap(b)-len(b) < minReadSize {
		grown := make([]byte, len(b), 2*cap(b)+minReadSize)
		copy(grown, b)
		b = grown
	}

	n, err := fr.r.Read(b[len(b):cap(b)])
	fr.buf.B = b[:len(b)+n]

	if n > 0 {
		// data first; a non-deadline error resurfaces on the next fill
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			fr.pendingErr = classifyReadError(err)
		}

		return nil
	}

	if err == nil {
		return fmt.Errorf("%w: empty read", ErrConnClosed)
	}

	return classifyReadError(err)
}

// compact moves unread bytes to the front of the buffer.
func (fr *FrameReader) compact() {
	if fr.off == 0 {
		return
	}

	n := copy(fr.buf.B, fr.buf.B[fr.off:])
	fr.buf.B = fr.buf.B[:n]
	fr.off = 0
}

func classifyReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrConnClosed, err)
	}

	return fmt.Errorf("%w: read: %w", ErrTransport, err)
}
