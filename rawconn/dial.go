package rawconn

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/jpillora/backoff"

	"github.com/arloliu/go-mcpi/internal/pool"
	"github.com/arloliu/go-mcpi/mcpi"
)

// Dial connects to the game server at address ("host" or "host:port"; the
// port defaults to DefaultPort) and returns a raw connection.
func Dial(ctx context.Context, address string, opts ...ConnOption) (*Connection, error) {
	host, port, err := SplitAddress(address)
	if err != nil {
		return nil, err
	}

	cfg, err := NewConnectionConfig(host, port, opts...)
	if err != nil {
		return nil, err
	}

	return DialConfig(ctx, cfg)
}

// DialConfig connects with a prepared configuration.
//
// Each attempt is bounded by the connect timeout. Failed attempts are retried
// with a jittered exponential backoff until the configured number of dial
// attempts is used up or ctx is done.
func DialConfig(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	cfg.mu.RLock()
	attempts := cfg.dialAttempts
	connectTimeout := cfg.connectTimeout
	b := &backoff.Backoff{
		Min:    cfg.dialBackoffMin,
		Max:    cfg.dialBackoffMax,
		Factor: 2,
		Jitter: true,
	}
	cfg.mu.RUnlock()

	address := cfg.Address()
	log := cfg.Logger()
	dialer := &net.Dialer{Timeout: connectTimeout}

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			log.Debug("connected", "address", address, "attempt", attempt)
			return NewConnection(conn, cfg)
		}

		if attempt >= attempts || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: dial %s: %w", mcpi.ErrTransport, address, err)
		}

		wait := b.Duration()
		log.Warn("dial failed, retrying", "address", address, "attempt", attempt, "wait", wait, "error", err)

		timer := pool.GetTimer(wait)
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)
			return nil, fmt.Errorf("%w: dial %s: %w", mcpi.ErrTransport, address, ctx.Err())
		case <-timer.C:
			pool.PutTimer(timer)
		}
	}
}

// SplitAddress splits "host[:port]" and applies DefaultPort when the port is
// omitted.
func SplitAddress(address string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		// no port given
		h, _, err2 := net.SplitHostPort(address + ":" + strconv.Itoa(DefaultPort))
		if err2 != nil {
			return "", 0, fmt.Errorf("invalid address %q: %w", address, err)
		}

		return h, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in address %q: %w", address, err)
	}

	return host, port, nil
}
