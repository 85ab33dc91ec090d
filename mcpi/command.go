package mcpi

import (
	"bytes"
	"fmt"
	"io"
)

// Command is a pre-serialized protocol command.
//
// A Command is immutable: its payload is copied on construction and on
// access. The payload always ends with exactly one line feed.
type Command struct {
	payload     []byte
	hasResponse bool
}

// NewCommand creates a Command from a serialized line. A trailing line feed is
// appended if missing. It returns ErrInvalidCommand if the payload is empty or
// contains a line feed anywhere but at the end.
func NewCommand(payload []byte, hasResponse bool) (Command, error) {
	line := bytes.TrimSuffix(payload, []byte{'\n'})
	if len(line) == 0 {
		return Command{}, fmt.Errorf("%w: empty payload", ErrInvalidCommand)
	}

	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		return Command{}, fmt.Errorf("%w: line feed at offset %d", ErrInvalidCommand, idx)
	}

	buf := make([]byte, len(line)+1)
	copy(buf, line)
	buf[len(line)] = '\n'

	return Command{payload: buf, hasResponse: hasResponse}, nil
}

// MustCommand is like NewCommand but panics on error. It is intended for
// package level command tables built from constant strings.
func MustCommand(line string, hasResponse bool) Command {
	cmd, err := NewCommand([]byte(line), hasResponse)
	if err != nil {
		panic(err)
	}

	return cmd
}

// Bytes returns a copy of the serialized payload, including the line feed.
func (c Command) Bytes() []byte {
	return bytes.Clone(c.payload)
}

// HasResponse reports whether the server answers this command with one frame.
func (c Command) HasResponse() bool {
	return c.hasResponse
}

// IsZero reports whether c is the zero Command.
func (c Command) IsZero() bool {
	return len(c.payload) == 0
}

// Len returns the payload length in bytes.
func (c Command) Len() int {
	return len(c.payload)
}

// WriteTo writes the payload to w without copying it.
func (c Command) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.payload)
	return int64(n), err
}

// String returns the command line without its line feed.
func (c Command) String() string {
	return string(bytes.TrimSuffix(c.payload, []byte{'\n'}))
}
