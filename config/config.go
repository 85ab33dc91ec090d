// Package config loads connection settings from a TOML file.
//
// Keys left out of the file keep their defaults:
//
//	address = "localhost:4711"
//	connect_timeout = "3s"
//	write_timeout = "5s"
//	response_timeout = "1s"       # "0s" waits forever
//	always_wait_for_response = false
//	queue_size = 100
//	close_timeout = "10s"
//	dial_attempts = 1
//	dial_backoff_min = "200ms"
//	dial_backoff_max = "5s"
//	cp437_responses = false
//	max_frame_size = 1048576
//	log_level = "info"
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
	"github.com/arloliu/go-mcpi/queued"
	"github.com/arloliu/go-mcpi/rawconn"
)

// Config holds the settings of a queued connection.
type Config struct {
	Address               string
	ConnectTimeout        time.Duration
	WriteTimeout          time.Duration
	ResponseTimeout       time.Duration
	AlwaysWaitForResponse bool
	QueueSize             int
	CloseTimeout          time.Duration
	DialAttempts          int
	DialBackoffMin        time.Duration
	DialBackoffMax        time.Duration
	CP437Responses        bool
	MaxFrameSize          int
	LogLevel              string
}

// fileConfig maps config file keys to settings.
type fileConfig struct {
	Address               string `toml:"address"`
	ConnectTimeout        string `toml:"connect_timeout"`
	WriteTimeout          string `toml:"write_timeout"`
	ResponseTimeout       string `toml:"response_timeout"`
	AlwaysWaitForResponse bool   `toml:"always_wait_for_response"`
	QueueSize             int    `toml:"queue_size"`
	CloseTimeout          string `toml:"close_timeout"`
	DialAttempts          int    `toml:"dial_attempts"`
	DialBackoffMin        string `toml:"dial_backoff_min"`
	DialBackoffMax        string `toml:"dial_backoff_max"`
	CP437Responses        bool   `toml:"cp437_responses"`
	MaxFrameSize          int    `toml:"max_frame_size"`
	LogLevel              string `toml:"log_level"`
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Address:         fmt.Sprintf("localhost:%d", rawconn.DefaultPort),
		ConnectTimeout:  3 * time.Second,
		WriteTimeout:    5 * time.Second,
		ResponseTimeout: mcpi.DefaultResponseTimeout,
		QueueSize:       queued.DefaultQueueSize,
		CloseTimeout:    10 * time.Second,
		DialAttempts:    1,
		DialBackoffMin:  200 * time.Millisecond,
		DialBackoffMax:  5 * time.Second,
		MaxFrameSize:    mcpi.DefaultMaxFrameSize,
		LogLevel:        "info",
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return overlay(raw, meta)
}

// Decode parses TOML text over the defaults and validates the result.
func Decode(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return overlay(raw, meta)
}

func overlay(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unknown key %q", undecoded[0].String())
	}

	cfg := Default()

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("always_wait_for_response") {
		cfg.AlwaysWaitForResponse = raw.AlwaysWaitForResponse
	}
	if meta.IsDefined("queue_size") {
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("dial_attempts") {
		cfg.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("cp437_responses") {
		cfg.CP437Responses = raw.CP437Responses
	}
	if meta.IsDefined("max_frame_size") {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"response_timeout", raw.ResponseTimeout, &cfg.ResponseTimeout},
		{"close_timeout", raw.CloseTimeout, &cfg.CloseTimeout},
		{"dial_backoff_min", raw.DialBackoffMin, &cfg.DialBackoffMin},
		{"dial_backoff_max", raw.DialBackoffMax, &cfg.DialBackoffMax},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}

		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error

	if _, _, err := rawconn.SplitAddress(c.Address); err != nil || c.Address == "" {
		errs = append(errs, fmt.Errorf("address %q is invalid", c.Address))
	}
	if c.ResponseTimeout < 0 {
		errs = append(errs, errors.New("response_timeout must not be negative"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("queue_size must be at least 1"))
	}
	if c.CloseTimeout <= 0 {
		errs = append(errs, errors.New("close_timeout must be positive"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// the remaining ranges are enforced by the connection options
	host, port, _ := rawconn.SplitAddress(c.Address)
	if _, err := rawconn.NewConnectionConfig(host, port, c.ConnOptions(logger.GetLogger())...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// ConnectOptions returns the response wait options.
func (c Config) ConnectOptions() mcpi.ConnectOptions {
	return mcpi.ConnectOptions{
		ResponseTimeout:       c.ResponseTimeout,
		AlwaysWaitForResponse: c.AlwaysWaitForResponse,
	}
}

// ConnOptions converts the settings to raw connection options.
func (c Config) ConnOptions(l logger.Logger) []rawconn.ConnOption {
	return []rawconn.ConnOption{
		rawconn.WithConnectTimeout(c.ConnectTimeout),
		rawconn.WithWriteTimeout(c.WriteTimeout),
		rawconn.WithConnectOptions(c.ConnectOptions()),
		rawconn.WithDialRetry(c.DialAttempts, c.DialBackoffMin, c.DialBackoffMax),
		rawconn.WithCP437Responses(c.CP437Responses),
		rawconn.WithMaxFrameSize(c.MaxFrameSize),
		rawconn.WithLogger(l),
	}
}

// QueueOptions converts the settings to queued connection options.
func (c Config) QueueOptions(l logger.Logger) []queued.Option {
	return []queued.Option{
		queued.WithCloseTimeout(c.CloseTimeout),
		queued.WithLogger(l),
	}
}

// Logger creates a slog backed logger at the configured level.
func (c Config) Logger() (logger.Logger, error) {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	return logger.NewSlog(level, false), nil
}

// Dial connects with the settings and starts a queued connection. A nil
// logger selects Logger().
func (c Config) Dial(ctx context.Context, l logger.Logger) (*queued.QueuedConnection, error) {
	if l == nil {
		var err error
		if l, err = c.Logger(); err != nil {
			return nil, err
		}
	}

	host, port, err := rawconn.SplitAddress(c.Address)
	if err != nil {
		return nil, err
	}

	connCfg, err := rawconn.NewConnectionConfig(host, port, c.ConnOptions(l)...)
	if err != nil {
		return nil, err
	}

	return queued.DialConfig(ctx, connCfg, c.QueueSize, c.QueueOptions(l)...)
}
