package mcpi

import (
	"fmt"
	"time"
)

// DefaultResponseTimeout is the response timeout used by DefaultConnectOptions.
const DefaultResponseTimeout = time.Second

// ConnectOptions controls how a connection waits for responses.
//
// ConnectOptions is a value type; connections take a snapshot at the start of
// each send, so replacing the options never affects a send in flight.
type ConnectOptions struct {
	// ResponseTimeout bounds the wait for a response frame. Zero means no
	// timeout. Higher values lower the chance of a timeout error but make
	// always-wait sends slower.
	ResponseTimeout time.Duration

	// AlwaysWaitForResponse makes the connection wait for a frame after every
	// command, including commands that normally get no answer, so that an
	// unsolicited "Fail" from the server is not missed. Every such command then
	// takes up to ResponseTimeout to complete.
	AlwaysWaitForResponse bool
}

// DefaultConnectOptions returns a one second response timeout without
// always-wait.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{ResponseTimeout: DefaultResponseTimeout}
}

// HasTimeout reports whether response waits are bounded.
func (o ConnectOptions) HasTimeout() bool {
	return o.ResponseTimeout > 0
}

// WaitsFor reports whether a send of cmd reads a response frame.
func (o ConnectOptions) WaitsFor(cmd Command) bool {
	return cmd.HasResponse() || o.AlwaysWaitForResponse
}

// Validate checks the options against the command about to be sent.
//
// It returns ErrConfiguration when AlwaysWaitForResponse is set without a
// ResponseTimeout and cmd expects no response: the server would normally never
// answer and the send would hang forever.
func (o ConnectOptions) Validate(cmd Command) error {
	if o.ResponseTimeout < 0 {
		return fmt.Errorf("%w: negative response timeout %v", ErrConfiguration, o.ResponseTimeout)
	}

	if o.AlwaysWaitForResponse && !o.HasTimeout() && !cmd.HasResponse() {
		return fmt.Errorf("%w: command %q expects no response", ErrConfiguration, cmd.String())
	}

	return nil
}

// String implements fmt.Stringer.
func (o ConnectOptions) String() string {
	timeout := "none"
	if o.HasTimeout() {
		timeout = o.ResponseTimeout.String()
	}

	return fmt.Sprintf("{response_timeout: %s, always_wait_for_response: %t}", timeout, o.AlwaysWaitForResponse)
}
