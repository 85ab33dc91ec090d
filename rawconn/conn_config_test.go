package rawconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
)

func TestNewConnectionConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig("localhost", DefaultPort)
	require.NoError(err)
	require.Equal("localhost:4711", cfg.Address())
	require.Equal(3*time.Second, cfg.connectTimeout)
	require.Equal(5*time.Second, cfg.WriteTimeout())
	require.Equal(1, cfg.dialAttempts)
	require.Equal(mcpi.DefaultConnectOptions(), cfg.ConnectOptions())
	require.Equal(mcpi.DefaultMaxFrameSize, cfg.maxFrameSize)
	require.False(cfg.CP437Responses())
	require.NotNil(cfg.Logger())
}

func TestNewConnectionConfig_Options(t *testing.T) {
	require := require.New(t)

	l := logger.NewMockLogger().AllowAll()
	cfg, err := NewConnectionConfig("10.0.0.2", 4712,
		WithConnectTimeout(time.Second),
		WithWriteTimeout(0),
		WithDialRetry(5, 10*time.Millisecond, time.Second),
		WithResponseTimeout(250*time.Millisecond),
		WithAlwaysWaitForResponse(true),
		WithCP437Responses(true),
		WithMaxFrameSize(4096),
		WithLogger(l),
	)
	require.NoError(err)
	require.Equal("10.0.0.2:4712", cfg.Address())
	require.Equal(time.Second, cfg.connectTimeout)
	require.Zero(cfg.WriteTimeout())
	require.Equal(5, cfg.dialAttempts)
	require.Equal(10*time.Millisecond, cfg.dialBackoffMin)
	require.Equal(time.Second, cfg.dialBackoffMax)
	require.Equal(mcpi.ConnectOptions{ResponseTimeout: 250 * time.Millisecond, AlwaysWaitForResponse: true}, cfg.ConnectOptions())
	require.True(cfg.CP437Responses())
	require.Equal(4096, cfg.maxFrameSize)
	require.Same(l, cfg.Logger())
}

func TestNewConnectionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		opts []ConnOption
	}{
		{name: "empty host", host: "", port: DefaultPort},
		{name: "host with space", host: "local host", port: DefaultPort},
		{name: "port zero", host: "localhost", port: 0},
		{name: "port too large", host: "localhost", port: 65536},
		{name: "connect timeout too small", host: "localhost", port: DefaultPort, opts: []ConnOption{WithConnectTimeout(0)}},
		{name: "connect timeout too large", host: "localhost", port: DefaultPort, opts: []ConnOption{WithConnectTimeout(2 * time.Minute)}},
		{name: "negative write timeout", host: "localhost", port: DefaultPort, opts: []ConnOption{WithWriteTimeout(-time.Second)}},
		{name: "zero dial attempts", host: "localhost", port: DefaultPort, opts: []ConnOption{WithDialRetry(0, time.Millisecond, time.Second)}},
		{name: "inverted backoff", host: "localhost", port: DefaultPort, opts: []ConnOption{WithDialRetry(2, time.Second, time.Millisecond)}},
		{name: "negative response timeout", host: "localhost", port: DefaultPort, opts: []ConnOption{WithResponseTimeout(-time.Second)}},
		{name: "frame size too small", host: "localhost", port: DefaultPort, opts: []ConnOption{WithMaxFrameSize(8)}},
		{name: "nil logger", host: "localhost", port: DefaultPort, opts: []ConnOption{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnectionConfig(tt.host, tt.port, tt.opts...)
			require.Error(t, err)
		})
	}
}

func TestConnOption_NilConfig(t *testing.T) {
	require.ErrorIs(t, WithCP437Responses(true).apply(nil), ErrConnConfigNil)
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		address string
		host    string
		port    int
		wantErr bool
	}{
		{address: "localhost", host: "localhost", port: DefaultPort},
		{address: "127.0.0.1:4712", host: "127.0.0.1", port: 4712},
		{address: "[::1]", host: "::1", port: DefaultPort},
		{address: "[::1]:5000", host: "::1", port: 5000},
		{address: "host:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, port, err := SplitAddress(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.host, host)
			require.Equal(t, tt.port, port)
		})
	}
}
