package mcpi

import "errors"

var (
	// ErrInvalidCommand indicates that a command payload is empty or contains an
	// embedded line feed, which would break line framing.
	ErrInvalidCommand = errors.New("mcpi: invalid command payload")

	// ErrConfiguration indicates that AlwaysWaitForResponse is set without a
	// ResponseTimeout for a command that does not expect a response. Such a
	// send could block forever, so it is rejected before any I/O.
	ErrConfiguration = errors.New("mcpi: always wait for response requires a response timeout")
)

var (
	// ErrTransport indicates that writing to or reading from the stream failed.
	// The underlying cause is joined to the returned error.
	ErrTransport = errors.New("mcpi: transport error")

	// ErrTimeout indicates that no response frame arrived within the response
	// timeout. The command was already sent, so the server may still process it.
	ErrTimeout = errors.New("mcpi: response timeout")

	// ErrConnClosed indicates that the connection is closed, either locally or
	// because the server closed the stream.
	ErrConnClosed = errors.New("mcpi: connection closed")

	// ErrMalformedResponse indicates that a response frame is not valid text.
	ErrMalformedResponse = errors.New("mcpi: malformed response")

	// ErrFrameTooLarge indicates that the server sent a line longer than the
	// configured maximum frame size.
	ErrFrameTooLarge = errors.New("mcpi: frame too large")
)

var (
	// ErrQueueClosed indicates a submission to a queued connection whose worker
	// has stopped.
	ErrQueueClosed = errors.New("mcpi: request queue closed")

	// ErrQueueFull indicates that a non-blocking submission found the request
	// queue at capacity.
	ErrQueueFull = errors.New("mcpi: request queue full")
)

// IsFatal reports whether err leaves the connection unusable. Timeouts,
// malformed responses and configuration errors are not fatal; the stream is
// still in a known state afterwards.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnClosed) || errors.Is(err, ErrTransport) || errors.Is(err, ErrFrameTooLarge)
}
