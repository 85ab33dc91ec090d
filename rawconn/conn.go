package rawconn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
)

// staleFramePoll bounds the socket poll used to discard owed frames before a
// command is written.
const staleFramePoll = time.Millisecond

// Connection is a raw MCPI connection over one stream.
//
// Sends are serialized by an internal mutex, but the protocol itself has no
// request identifiers: callers that need concurrent access should share a
// queued connection instead.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger
	id     string

	conn   net.Conn
	writer *bufio.Writer
	reader *mcpi.FrameReader

	mu         sync.Mutex // guards writer, reader, owedFrames and fatalErr
	owedFrames int        // frames still expected for timed out requests
	fatalErr   error

	optsMu sync.RWMutex
	opts   mcpi.ConnectOptions

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	metrics ConnectionMetrics
}

// ensure Connection implements mcpi.Protocol interface.
var _ mcpi.Protocol = &Connection{}

// NewConnection wraps an established stream. The connection takes ownership of
// stream and closes it in Close.
func NewConnection(stream net.Conn, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	if stream == nil {
		return nil, errors.New("rawconn: stream is nil")
	}

	cfg.mu.RLock()
	maxFrameSize := cfg.maxFrameSize
	opts := cfg.options
	cfg.mu.RUnlock()

	id := uuid.NewString()
	c := &Connection{
		cfg:    cfg,
		id:     id,
		conn:   stream,
		writer: bufio.NewWriter(stream),
		reader: mcpi.NewFrameReader(stream, maxFrameSize),
		opts:   opts,
	}
	c.logger = cfg.Logger().With("conn_id", id, "remote_address", remoteAddr(stream))

	c.logger.Debug("connection created", "options", opts.String(), "max_frame_size", maxFrameSize)

	return c, nil
}

// ID returns the identifier used to tag the connection's log records.
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the remote network address of the stream.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// GetLogger returns the connection logger.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the connection metrics.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// Options returns the current response wait options.
func (c *Connection) Options() mcpi.ConnectOptions {
	c.optsMu.RLock()
	defer c.optsMu.RUnlock()

	return c.opts
}

// SetOptions replaces the response wait options. Sends already in progress
// keep the options they started with.
func (c *Connection) SetOptions(opts mcpi.ConnectOptions) {
	c.optsMu.Lock()
	c.opts = opts
	c.optsMu.Unlock()

	c.logger.Debug("options updated", "options", opts.String())
}

// UpdateConfigOptions applies runtime options to the connection config and
// refreshes the response wait options from it. Options that can't be changed
// at runtime are rejected.
func (c *Connection) UpdateConfigOptions(opts ...ConnOption) error {
	for _, opt := range opts {
		connOpt, ok := opt.(*connOptFunc)
		if !ok {
			return errors.New("invalid ConnOption type")
		}

		if !connOpt.runtime {
			return fmt.Errorf("option %s can't be changed at runtime", connOpt.name)
		}

		if err := opt.apply(c.cfg); err != nil {
			return err
		}
	}

	c.SetOptions(c.cfg.ConnectOptions())

	return nil
}

// Send writes cmd and returns the response text.
//
// Commands without a response return "" without reading, unless the options
// ask to always wait. A command waited on only because of always-wait returns
// "" when no frame arrives within the response timeout. A command that expects
// a response returns mcpi.ErrTimeout instead, and its late frame is discarded
// when it eventually arrives.
//
// Cancelling ctx aborts the response wait. The command may already be on the
// wire at that point.
func (c *Connection) Send(ctx context.Context, cmd mcpi.Command) (string, error) {
	if cmd.IsZero() {
		return "", mcpi.ErrInvalidCommand
	}

	opts := c.Options()
	if err := opts.Validate(cmd); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseIfClosed()

	if c.closed.Load() {
		return "", mcpi.ErrConnClosed
	}

	if c.fatalErr != nil {
		return "", fmt.Errorf("%w: %w", mcpi.ErrConnClosed, c.fatalErr)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := c.dropStaleFrames(); err != nil {
		return "", c.fail(err)
	}

	if err := c.write(cmd); err != nil {
		return "", c.fail(err)
	}
	c.metrics.incCommandSendCount()

	if !opts.WaitsFor(cmd) {
		return "", nil
	}

	return c.awaitResponse(ctx, cmd, opts)
}

// Close flushes pending writes, half-closes the write side where the stream
// supports it and closes the stream. It is idempotent; later sends fail with
// mcpi.ErrConnClosed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.logger.Debug("start close process")

		var flushErr error
		// a send in progress owns the writer and the reader; closing the stream
		// below aborts it and the send releases the reader itself.
		locked := c.mu.TryLock()
		if locked {
			flushErr = c.flush()
		}

		if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}

		closeErr := c.conn.Close()
		if errors.Is(closeErr, net.ErrClosed) {
			closeErr = nil
		}

		if locked {
			c.reader.Release()
			c.mu.Unlock()
		}

		if err := errors.Join(flushErr, closeErr); err != nil {
			c.closeErr = fmt.Errorf("%w: close: %w", mcpi.ErrTransport, err)
			c.logger.Warn("close failed", "error", err)

			return
		}

		c.logger.Debug("connection closed")
	})

	return c.closeErr
}

func (c *Connection) write(cmd mcpi.Command) error {
	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("try to send command", "command", cmd.String(), "has_response", cmd.HasResponse())
	}

	if err := c.setWriteDeadline(); err != nil {
		return c.transportError("set write deadline", err)
	}

	if _, err := cmd.WriteTo(c.writer); err != nil {
		return c.transportError("write", err)
	}

	if err := c.writer.Flush(); err != nil {
		return c.transportError("flush", err)
	}

	return nil
}

func (c *Connection) flush() error {
	if c.writer.Buffered() == 0 {
		return nil
	}

	if err := c.setWriteDeadline(); err != nil {
		return err
	}

	return c.writer.Flush()
}

func (c *Connection) setWriteDeadline() error {
	var deadline time.Time
	if d := c.cfg.WriteTimeout(); d > 0 {
		deadline = time.Now().Add(d)
	}

	return c.conn.SetWriteDeadline(deadline)
}

func (c *Connection) awaitResponse(ctx context.Context, cmd mcpi.Command, opts mcpi.ConnectOptions) (string, error) {
	var deadline time.Time
	if opts.HasTimeout() {
		deadline = time.Now().Add(opts.ResponseTimeout)
	}

	ctxDeadline := false
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
		ctxDeadline = true
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", c.fail(c.transportError("set read deadline", err))
	}

	wakeDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(wakeDone)
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		// the wake-up must not land on the next send's read deadline
		if !stop() {
			<-wakeDone
		}
	}()

	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			return c.waitError(ctx, cmd, opts, ctxDeadline, err)
		}

		if c.owedFrames > 0 {
			c.dropStaleFrame(frame)
			continue
		}

		c.metrics.incResponseRecvCount()

		text, err := mcpi.DecodeResponse(frame, c.cfg.CP437Responses())
		if err != nil {
			c.metrics.incErrCount()
			c.logger.Warn("malformed response", "command", cmd.String(), "error", err)

			return "", err
		}

		if c.logger.Level() == logger.DebugLevel {
			c.logger.Debug("response received", "command", cmd.String(), "response", text)
		}

		return text, nil
	}
}

func (c *Connection) waitError(ctx context.Context, cmd mcpi.Command, opts mcpi.ConnectOptions, ctxDeadline bool, err error) (string, error) {
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		return "", c.fail(err)
	}

	if cmd.HasResponse() {
		c.owedFrames++
		c.metrics.setOwedFrameGauge(c.owedFrames)
	}

	ctxErr := ctx.Err()
	if ctxErr == nil && ctxDeadline {
		ctxErr = context.DeadlineExceeded
	}

	if ctxErr != nil {
		c.logger.Debug("response wait aborted", "command", cmd.String(), "error", ctxErr)
		return "", fmt.Errorf("response wait aborted: %w", ctxErr)
	}

	// silence within the window means the server did not complain
	if !cmd.HasResponse() {
		return "", nil
	}

	c.metrics.incTimeoutCount()
	c.logger.Warn("response timeout", "command", cmd.String(), "timeout", opts.ResponseTimeout, "owed_frames", c.owedFrames)

	return "", fmt.Errorf("%w: %q after %v", mcpi.ErrTimeout, cmd.String(), opts.ResponseTimeout)
}

// dropStaleFrames discards owed frames that are buffered or arrive within
// staleFramePoll. Frames still missing are skipped by the next response wait.
func (c *Connection) dropStaleFrames() error {
	for c.owedFrames > 0 {
		if frame, ok := c.reader.NextBufferedFrame(); ok {
			c.dropStaleFrame(frame)
			continue
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(staleFramePoll)); err != nil {
			return c.transportError("set read deadline", err)
		}

		frame, err := c.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}

			return err
		}

		c.dropStaleFrame(frame)
	}

	return nil
}

func (c *Connection) dropStaleFrame(frame []byte) {
	c.owedFrames--
	c.metrics.setOwedFrameGauge(c.owedFrames)
	c.metrics.incStaleFrameDropCount()
	c.logger.Warn("drop stale response frame", "frame", mcpi.DecodeCP437(frame), "owed_frames", c.owedFrames)
}

// fail records a fatal error; every later send fails with mcpi.ErrConnClosed.
func (c *Connection) fail(err error) error {
	c.metrics.incErrCount()

	if mcpi.IsFatal(err) && c.fatalErr == nil {
		c.fatalErr = err
		c.logger.Error("connection failed", "error", err)
	}

	return err
}

func (c *Connection) transportError(op string, err error) error {
	if c.closed.Load() || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %s: %w", mcpi.ErrConnClosed, op, err)
	}

	return fmt.Errorf("%w: %s: %w", mcpi.ErrTransport, op, err)
}

func (c *Connection) releaseIfClosed() {
	if c.closed.Load() {
		c.reader.Release()
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}
