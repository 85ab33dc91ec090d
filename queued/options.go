package queued

import (
	"errors"
	"time"

	"github.com/arloliu/go-mcpi/logger"
)

// DefaultQueueSize is the request queue capacity used by callers that have no
// preference.
const DefaultQueueSize = 100

// Option configures a queued connection.
type Option interface {
	apply(*queueConfig) error
}

type queueConfig struct {
	closeTimeout time.Duration
	logger       logger.Logger
}

func defaultQueueConfig() *queueConfig {
	return &queueConfig{
		closeTimeout: 10 * time.Second,
	}
}

type optFunc struct {
	name      string
	applyFunc func(*queueConfig) error
}

func (o *optFunc) apply(cfg *queueConfig) error {
	return o.applyFunc(cfg)
}

// WithCloseTimeout bounds how long Close waits for queued requests to finish
// before the worker is stopped forcibly. Defaults to 10 seconds.
func WithCloseTimeout(d time.Duration) Option {
	return &optFunc{name: "WithCloseTimeout", applyFunc: func(cfg *queueConfig) error {
		if d <= 0 {
			return errors.New("close timeout must be positive")
		}
		cfg.closeTimeout = d

		return nil
	}}
}

// WithLogger sets the logger of the worker. Defaults to the raw connection's
// logger when it has one, or the package default logger.
func WithLogger(l logger.Logger) Option {
	return &optFunc{name: "WithLogger", applyFunc: func(cfg *queueConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	}}
}
