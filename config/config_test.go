package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mcpi/internal/mcpitest"
	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
	"github.com/arloliu/go-mcpi/queued"
)

func TestDecode_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Decode("")
	require.NoError(err)
	require.Equal(Default(), cfg)
	require.Equal("localhost:4711", cfg.Address)
	require.Equal(mcpi.DefaultConnectOptions(), cfg.ConnectOptions())
	require.Equal(queued.DefaultQueueSize, cfg.QueueSize)
}

func TestDecode_Overrides(t *testing.T) {
	require := require.New(t)

	cfg, err := Decode(`
address = "10.0.0.5:4712"
connect_timeout = "1s"
write_timeout = "0s"
response_timeout = "250ms"
always_wait_for_response = true
queue_size = 8
close_timeout = "2s"
dial_attempts = 4
dial_backoff_min = "10ms"
dial_backoff_max = "1s"
cp437_responses = true
max_frame_size = 4096
log_level = "debug"
`)
	require.NoError(err)
	require.Equal(Config{
		Address:               "10.0.0.5:4712",
		ConnectTimeout:        time.Second,
		WriteTimeout:          0,
		ResponseTimeout:       250 * time.Millisecond,
		AlwaysWaitForResponse: true,
		QueueSize:             8,
		CloseTimeout:          2 * time.Second,
		DialAttempts:          4,
		DialBackoffMin:        10 * time.Millisecond,
		DialBackoffMax:        time.Second,
		CP437Responses:        true,
		MaxFrameSize:          4096,
		LogLevel:              "debug",
	}, cfg)
	require.Len(cfg.ConnOptions(logger.GetLogger()), 7)
	require.Len(cfg.QueueOptions(logger.GetLogger()), 2)
}

func TestDecode_NoResponseTimeout(t *testing.T) {
	cfg, err := Decode(`response_timeout = "0s"`)
	require.NoError(t, err)
	require.False(t, cfg.ConnectOptions().HasTimeout())
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "syntax", data: `address = `},
		{name: "unknown key", data: `adress = "localhost"`},
		{name: "bad duration", data: `response_timeout = "soon"`},
		{name: "negative timeout", data: `response_timeout = "-1s"`},
		{name: "zero queue", data: `queue_size = 0`},
		{name: "bad address", data: `address = "host:port"`},
		{name: "bad log level", data: `log_level = "verbose"`},
		{name: "frame size out of range", data: `max_frame_size = 1`},
		{name: "dial attempts", data: `dial_attempts = 0`},
		{name: "wrong type", data: `queue_size = "ten"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "mcpi.toml")
	require.NoError(os.WriteFile(path, []byte("address = \"example.org\"\nqueue_size = 3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("example.org", cfg.Address)
	require.Equal(3, cfg.QueueSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(err)
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	l, err := cfg.Logger()
	require.NoError(t, err)
	require.Equal(t, logger.WarnLevel, l.Level())
}

func TestConfig_Dial(t *testing.T) {
	require := require.New(t)

	world := mcpitest.NewWorld()
	srv := mcpitest.NewServer(t, world.Handle)

	cfg, err := Decode(`queue_size = 4`)
	require.NoError(err)
	cfg.Address = srv.Addr()

	conn, err := cfg.Dial(context.Background(), logger.NewMockLogger().AllowAll())
	require.NoError(err)

	resp, err := conn.Send(context.Background(), mcpi.MustCommand("world.getBlock(0,0,0)", true))
	require.NoError(err)
	require.Equal("0", resp)
	require.NoError(conn.Close())
}
