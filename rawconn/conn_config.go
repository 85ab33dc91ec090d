package rawconn

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
)

// DefaultPort is the TCP port the game's API server listens on.
const DefaultPort = 4711

// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
var ErrConnConfigNil = errors.New("rawconn: connection config is nil")

// ConnectionConfig holds the parameters of a raw connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host and port of the game server.
	host string
	port int

	// connectTimeout bounds each dial attempt. Defaults to 3 seconds.
	connectTimeout time.Duration

	// dialAttempts is the number of dial attempts before Dial gives up.
	// Defaults to 1, no retry.
	dialAttempts int
	// dialBackoffMin and dialBackoffMax bound the pause between dial attempts.
	// Defaults to 200 milliseconds and 5 seconds.
	dialBackoffMin time.Duration
	dialBackoffMax time.Duration

	// writeTimeout bounds writing and flushing one command. Zero disables it.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// options are the initial response wait options. They can be changed at
	// runtime. Defaults to mcpi.DefaultConnectOptions().
	options mcpi.ConnectOptions

	// cp437Responses decodes response frames as CP437 instead of requiring
	// UTF-8. Defaults to false.
	cp437Responses bool

	// maxFrameSize bounds the length of one response line.
	// Defaults to mcpi.DefaultMaxFrameSize.
	maxFrameSize int

	logger logger.Logger
}

// NewConnectionConfig creates a configuration for the game server at host and
// port, applying opts over the defaults.
//
// It returns the partially applied configuration and the first option error.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		connectTimeout: 3 * time.Second,
		dialAttempts:   1,
		dialBackoffMin: 200 * time.Millisecond,
		dialBackoffMax: 5 * time.Second,
		writeTimeout:   5 * time.Second,
		options:        mcpi.DefaultConnectOptions(),
		maxFrameSize:   mcpi.DefaultMaxFrameSize,
		logger:         logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Address returns the host:port dial address.
func (cfg *ConnectionConfig) Address() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

// ConnectOptions returns the configured response wait options.
func (cfg *ConnectionConfig) ConnectOptions() mcpi.ConnectOptions {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.options
}

// Logger returns the configured logger.
func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

func (cfg *ConnectionConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

func (cfg *ConnectionConfig) CP437Responses() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.cp437Responses
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, runtime bool, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{
		name:      name,
		runtime:   runtime,
		applyFunc: f,
	}
}

func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", false, func(cfg *ConnectionConfig) error {
		host = strings.TrimSpace(host)
		if host == "" || strings.ContainsAny(host, " \t/") {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", false, func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the timeout of each dial attempt.
// It should be between 1 millisecond and 60 seconds.
//
// This option can't be changed at runtime.
func WithConnectTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", false, func(cfg *ConnectionConfig) error {
		if d < time.Millisecond || d > 60*time.Second {
			return errors.New("connect timeout out of range [1ms, 60s]")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithDialRetry makes Dial try up to attempts times, pausing between attempts
// with a jittered exponential backoff bounded by minWait and maxWait.
//
// Only the initial dial is retried; a connection lost later is never
// re-established.
//
// This option can't be changed at runtime.
func WithDialRetry(attempts int, minWait, maxWait time.Duration) ConnOption {
	return newConnOptFunc("WithDialRetry", false, func(cfg *ConnectionConfig) error {
		if attempts < 1 {
			return errors.New("dial attempts must be positive")
		}
		if minWait <= 0 || maxWait < minWait {
			return errors.New("dial backoff must satisfy 0 < min <= max")
		}
		cfg.dialAttempts = attempts
		cfg.dialBackoffMin = minWait
		cfg.dialBackoffMax = maxWait

		return nil
	})
}

// WithWriteTimeout bounds writing and flushing one command. Zero disables the
// bound.
//
// This option can't be changed at runtime.
func WithWriteTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", false, func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("write timeout must not be negative")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithConnectOptions replaces the response wait options.
//
// This option can be changed at runtime.
func WithConnectOptions(opts mcpi.ConnectOptions) ConnOption {
	return newConnOptFunc("WithConnectOptions", true, func(cfg *ConnectionConfig) error {
		if opts.ResponseTimeout < 0 {
			return fmt.Errorf("%w: negative response timeout", mcpi.ErrConfiguration)
		}
		cfg.options = opts

		return nil
	})
}

// WithResponseTimeout sets how long to wait for a response frame. Zero
// disables the timeout.
//
// This option can be changed at runtime.
func WithResponseTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithResponseTimeout", true, func(cfg *ConnectionConfig) error {
		if d < 0 {
			return fmt.Errorf("%w: negative response timeout", mcpi.ErrConfiguration)
		}
		cfg.options.ResponseTimeout = d

		return nil
	})
}

// WithAlwaysWaitForResponse makes every command wait for a response frame.
//
// This option can be changed at runtime.
func WithAlwaysWaitForResponse(val bool) ConnOption {
	return newConnOptFunc("WithAlwaysWaitForResponse", true, func(cfg *ConnectionConfig) error {
		cfg.options.AlwaysWaitForResponse = val
		return nil
	})
}

// WithCP437Responses decodes response frames through the CP437 table instead
// of requiring valid UTF-8.
//
// This option can't be changed at runtime.
func WithCP437Responses(val bool) ConnOption {
	return newConnOptFunc("WithCP437Responses", false, func(cfg *ConnectionConfig) error {
		cfg.cp437Responses = val
		return nil
	})
}

// WithMaxFrameSize bounds the length of one response line.
// It should be between 64 bytes and 64 MiB.
//
// This option can't be changed at runtime.
func WithMaxFrameSize(n int) ConnOption {
	return newConnOptFunc("WithMaxFrameSize", false, func(cfg *ConnectionConfig) error {
		if n < 64 || n > 64<<20 {
			return errors.New("max frame size out of range [64, 64MiB]")
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithLogger sets the logger used by the connection.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", false, func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
