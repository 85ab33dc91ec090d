package mcpi

import "context"

// Protocol is the surface collaborators use to talk to a game server: submit a
// command and await its raw response text, and close the connection.
type Protocol interface {
	// Send writes cmd and returns the response text verbatim, or "" when the
	// command is not waited on. Server "Fail" responses are returned as text,
	// not as errors; only the caller knows whether "Fail" is acceptable.
	Send(ctx context.Context, cmd Command) (string, error)

	// Close flushes and closes the connection.
	Close() error
}
