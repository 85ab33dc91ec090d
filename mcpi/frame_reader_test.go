package mcpi

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// zeroReader returns no data and no error, which the protocol treats as loss.
type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, nil }

// scriptedReader returns each chunk on its own Read call, then err.
type scriptedReader struct {
	chunks [][]byte
	err    error
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}

	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}

	return n, nil
}

func TestFrameReader_ReadFrame(t *testing.T) {
	require := require.New(t)

	t.Run("Single Frame", func(t *testing.T) {
		fr := NewFrameReader(strings.NewReader("1\n"), 0)
		defer fr.Release()

		frame, err := fr.ReadFrame()
		require.NoError(err)
		require.Equal([]byte("1"), frame)
		require.Zero(fr.Buffered())
	})

	t.Run("Empty Frame", func(t *testing.T) {
		fr := NewFrameReader(strings.NewReader("\n\n"), 0)
		defer fr.Release()

		for range 2 {
			frame, err := fr.ReadFrame()
			require.NoError(err)
			require.NotNil(frame)
			require.Empty(frame)
		}
	})

	t.Run("Frame Split Across Reads", func(t *testing.T) {
		fr := NewFrameReader(iotest.OneByteReader(strings.NewReader("0.5,64.0,-3.25\nFail\n")), 0)
		defer fr.Release()

		frame, err := fr.ReadFrame()
		require.NoError(err)
		require.Equal("0.5,64.0,-3.25", string(frame))

		frame, err = fr.ReadFrame()
		require.NoError(err)
		require.Equal("Fail", string(frame))
	})

	t.Run("Residual Bytes Stay Buffered", func(t *testing.T) {
		fr := NewFrameReader(&scriptedReader{chunks: [][]byte{[]byte("a\nbc")}, err: io.EOF}, 0)
		defer fr.Release()

		frame, err := fr.ReadFrame()
		require.NoError(err)
		require.Equal("a", string(frame))
		require.Equal(2, fr.Buffered())

		_, err = fr.ReadFrame()
		require.ErrorIs(err, ErrConnClosed)
		require.Equal(2, fr.Buffered())
	})

	t.Run("EOF Is Connection Closed", func(t *testing.T) {
		fr := NewFrameReader(strings.NewReader(""), 0)
		defer fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, ErrConnClosed)
		require.ErrorIs(err, io.EOF)
	})

	t.Run("Zero Length Read Is Connection Closed", func(t *testing.T) {
		fr := NewFrameReader(zeroReader{}, 0)
		defer fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, ErrConnClosed)
	})

	t.Run("Data Before EOF Is Delivered", func(t *testing.T) {
		r := iotest.DataErrReader(strings.NewReader("last\n"))
		fr := NewFrameReader(r, 0)
		defer fr.Release()

		frame, err := fr.ReadFrame()
		require.NoError(err)
		require.Equal("last", string(frame))

		_, err = fr.ReadFrame()
		require.ErrorIs(err, ErrConnClosed)
	})

	t.Run("Read Error Is Transport Error", func(t *testing.T) {
		boom := errors.New("boom")
		fr := NewFrameReader(iotest.ErrReader(boom), 0)
		defer fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, ErrTransport)
		require.ErrorIs(err, boom)
		require.False(errors.Is(err, ErrConnClosed))
	})

	t.Run("Deadline Error Is Not Sticky", func(t *testing.T) {
		r := &scriptedReader{err: os.ErrDeadlineExceeded}
		fr := NewFrameReader(r, 0)
		defer fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, os.ErrDeadlineExceeded)

		r.chunks = [][]byte{[]byte("late\n")}
		frame, err := fr.ReadFrame()
		require.NoError(err)
		require.Equal("late", string(frame))
	})

	t.Run("Frame Too Large", func(t *testing.T) {
		fr := NewFrameReader(strings.NewReader(strings.Repeat("x", 64)+"\n"), 16)
		defer fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, ErrFrameTooLarge)
	})

	t.Run("Released Reader", func(t *testing.T) {
		fr := NewFrameReader(strings.NewReader("1\n"), 0)
		fr.Release()
		fr.Release()

		_, err := fr.ReadFrame()
		require.ErrorIs(err, ErrConnClosed)
		require.Zero(fr.Buffered())
	})
}

func TestFrameReader_NextBufferedFrame(t *testing.T) {
	require := require.New(t)

	fr := NewFrameReader(&scriptedReader{chunks: [][]byte{[]byte("a\nb\nc")}, err: io.EOF}, 0)
	defer fr.Release()

	_, ok := fr.NextBufferedFrame()
	require.False(ok)

	frame, err := fr.ReadFrame()
	require.NoError(err)
	require.Equal("a", string(frame))

	frame, ok = fr.NextBufferedFrame()
	require.True(ok)
	require.Equal("b", string(frame))

	_, ok = fr.NextBufferedFrame()
	require.False(ok)
	require.Equal(1, fr.Buffered())
}

// For any byte sequence with k line feeds, exactly k frames come out in order,
// each holding the bytes between consecutive line feeds.
func TestFrameReader_ExtractsEveryFrame(t *testing.T) {
	require := require.New(t)

	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("abc,.-0123456789\n")

	for iter := range 200 {
		data := make([]byte, rng.Intn(400))
		for i := range data {
			data[i] = alphabet[rng.Intn(len(alphabet))]
		}

		parts := bytes.Split(data, []byte{'\n'})
		expected := parts[:len(parts)-1]
		residual := parts[len(parts)-1]

		var chunks [][]byte
		for rest := data; len(rest) > 0; {
			n := 1 + rng.Intn(32)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		fr := NewFrameReader(&scriptedReader{chunks: chunks, err: io.EOF}, 0)

		var got [][]byte
		for {
			frame, err := fr.ReadFrame()
			if err != nil {
				require.ErrorIs(err, ErrConnClosed, "iteration %d", iter)
				break
			}
			got = append(got, frame)
		}

		require.Len(got, len(expected), "iteration %d", iter)
		for i := range expected {
			require.Equal(string(expected[i]), string(got[i]), "iteration %d frame %d", iter, i)
		}
		require.Equal(len(residual), fr.Buffered(), "iteration %d", iter)

		fr.Release()
	}
}
