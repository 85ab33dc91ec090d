package queued

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-mcpi/internal/pool"
	"github.com/arloliu/go-mcpi/internal/task"
	"github.com/arloliu/go-mcpi/logger"
	"github.com/arloliu/go-mcpi/mcpi"
	"github.com/arloliu/go-mcpi/rawconn"
)

// RawConnection is the connection owned by the worker. *rawconn.Connection
// implements it.
type RawConnection interface {
	mcpi.Protocol
	SetOptions(opts mcpi.ConnectOptions)
}

// ensure the raw connection can be queued.
var _ RawConnection = &rawconn.Connection{}

// QueuedConnection is a handle to a connection shared through a request
// queue. It is safe for concurrent use; use Clone to hand out independently
// closable handles.
type QueuedConnection struct {
	core   *core
	closed atomic.Bool
}

// ensure QueuedConnection implements mcpi.Protocol interface.
var _ mcpi.Protocol = &QueuedConnection{}

type itemKind uint8

const (
	requestItem itemKind = iota
	optionsItem
	closeItem
)

type queueItem struct {
	kind itemKind
	req  *pendingRequest
	opts mcpi.ConnectOptions
}

type result struct {
	text string
	err  error
}

// pendingRequest is a command with a single-use completion slot.
type pendingRequest struct {
	cmd    mcpi.Command
	result chan result
}

func newPendingRequest(cmd mcpi.Command) *pendingRequest {
	return &pendingRequest{cmd: cmd, result: make(chan result, 1)}
}

func (r *pendingRequest) fulfill(text string, err error) {
	r.result <- result{text: text, err: err}
}

// core is the state shared by all handles of one connection.
type core struct {
	raw     RawConnection
	items   chan queueItem
	done    chan struct{} // closed when the worker exits
	state   AtomicOpState
	taskMgr *task.TaskManager
	logger  logger.Logger
	metrics *QueueMetrics
	refs    atomic.Int32

	closeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error // written by the worker before done is closed
}

// New starts the worker for raw and returns the first handle. The worker owns
// raw from now on; callers must not use raw directly.
//
// The worker stops when ctx is done, when the last handle is closed, or when
// raw fails fatally.
func New(ctx context.Context, raw RawConnection, queueSize int, opts ...Option) (*QueuedConnection, error) {
	if raw == nil {
		return nil, errors.New("queued: raw connection is nil")
	}

	if queueSize < 1 {
		return nil, fmt.Errorf("%w: queue size %d must be at least 1", mcpi.ErrConfiguration, queueSize)
	}

	cfg := defaultQueueConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.logger == nil {
		if lp, ok := raw.(interface{ GetLogger() logger.Logger }); ok {
			cfg.logger = lp.GetLogger()
		} else {
			cfg.logger = logger.GetLogger()
		}
	}

	c := &core{
		raw:          raw,
		items:        make(chan queueItem, queueSize),
		done:         make(chan struct{}),
		taskMgr:      task.NewTaskManager(ctx, cfg.logger),
		logger:       cfg.logger,
		metrics:      newQueueMetrics(),
		closeTimeout: cfg.closeTimeout,
	}
	c.refs.Store(1)
	c.state.ToOpening()

	if err := c.taskMgr.Start("worker", c.workerTask, c.workerExit); err != nil {
		c.state.Set(ClosedState)
		return nil, err
	}

	c.state.ToOpened()
	c.logger.Debug("queued connection started", "queue_size", queueSize)

	return &QueuedConnection{core: c}, nil
}

// Dial connects to address and starts a queued connection over the raw
// connection. ctx bounds dialing only; the worker runs until the connection
// is closed.
func Dial(ctx context.Context, address string, queueSize int, connOpts ...rawconn.ConnOption) (*QueuedConnection, error) {
	raw, err := rawconn.Dial(ctx, address, connOpts...)
	if err != nil {
		return nil, err
	}

	return startDialed(ctx, raw, queueSize)
}

// DialConfig connects with a prepared raw connection config and starts a
// queued connection over it. ctx bounds dialing only.
func DialConfig(ctx context.Context, cfg *rawconn.ConnectionConfig, queueSize int, opts ...Option) (*QueuedConnection, error) {
	raw, err := rawconn.DialConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return startDialed(ctx, raw, queueSize, opts...)
}

func startDialed(ctx context.Context, raw *rawconn.Connection, queueSize int, opts ...Option) (*QueuedConnection, error) {
	conn, err := New(context.WithoutCancel(ctx), raw, queueSize, opts...)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	return conn, nil
}

// Send enqueues cmd and waits for its response.
//
// When the queue is full, Send blocks until a slot frees up or ctx is done.
// Once enqueued, the command is always sent: cancelling ctx only stops the
// wait, and the worker still consumes the command's response.
func (q *QueuedConnection) Send(ctx context.Context, cmd mcpi.Command) (string, error) {
	c := q.core
	if q.closed.Load() || !c.state.IsOpened() {
		c.metrics.RejectCount.Inc()
		return "", mcpi.ErrQueueClosed
	}

	if cmd.IsZero() {
		return "", mcpi.ErrInvalidCommand
	}

	// a done ctx never reaches the queue
	if err := ctx.Err(); err != nil {
		c.metrics.RejectCount.Inc()
		return "", err
	}

	req := newPendingRequest(cmd)
	select {
	case c.items <- queueItem{kind: requestItem, req: req}:
		c.metrics.SubmitCount.Inc()
	case <-c.done:
		c.metrics.RejectCount.Inc()
		return "", mcpi.ErrQueueClosed
	case <-ctx.Done():
		c.metrics.RejectCount.Inc()
		return "", ctx.Err()
	}

	select {
	case r := <-req.result:
		return r.text, r.err
	case <-c.done:
		// the worker fulfills the current request before it exits
		select {
		case r := <-req.result:
			return r.text, r.err
		default:
			return "", mcpi.ErrConnClosed
		}
	case <-ctx.Done():
		c.metrics.AbandonCount.Inc()
		return "", ctx.Err()
	}
}

// SetOptions enqueues an options update without blocking. Requests enqueued
// before the update use the old options.
//
// It returns mcpi.ErrQueueFull when the queue has no free slot and
// mcpi.ErrQueueClosed after shutdown.
func (q *QueuedConnection) SetOptions(opts mcpi.ConnectOptions) error {
	c := q.core
	if q.closed.Load() || !c.state.IsOpened() {
		c.metrics.RejectCount.Inc()
		return mcpi.ErrQueueClosed
	}

	if opts.ResponseTimeout < 0 {
		return fmt.Errorf("%w: negative response timeout", mcpi.ErrConfiguration)
	}

	select {
	case c.items <- queueItem{kind: optionsItem, opts: opts}:
		return nil
	default:
		c.metrics.RejectCount.Inc()
		return mcpi.ErrQueueFull
	}
}

// SetOptionsWait enqueues an options update, blocking while the queue is full.
func (q *QueuedConnection) SetOptionsWait(ctx context.Context, opts mcpi.ConnectOptions) error {
	c := q.core
	if q.closed.Load() || !c.state.IsOpened() {
		c.metrics.RejectCount.Inc()
		return mcpi.ErrQueueClosed
	}

	if opts.ResponseTimeout < 0 {
		return fmt.Errorf("%w: negative response timeout", mcpi.ErrConfiguration)
	}

	if err := ctx.Err(); err != nil {
		c.metrics.RejectCount.Inc()
		return err
	}

	select {
	case c.items <- queueItem{kind: optionsItem, opts: opts}:
		return nil
	case <-c.done:
		c.metrics.RejectCount.Inc()
		return mcpi.ErrQueueClosed
	case <-ctx.Done():
		c.metrics.RejectCount.Inc()
		return ctx.Err()
	}
}

// Pressure returns the queue fill level in the range [0, 1].
func (q *QueuedConnection) Pressure() float64 {
	return float64(len(q.core.items)) / float64(cap(q.core.items))
}

// State returns the lifecycle state of the shared connection.
func (q *QueuedConnection) State() OpState {
	return q.core.state.Get()
}

// GetMetrics returns the metrics shared by all handles.
func (q *QueuedConnection) GetMetrics() *QueueMetrics {
	return q.core.metrics
}

// Done returns a channel that is closed when the worker has exited.
func (q *QueuedConnection) Done() <-chan struct{} {
	return q.core.done
}

// Clone returns a new handle to the same worker. The worker keeps running
// until every handle is closed.
func (q *QueuedConnection) Clone() *QueuedConnection {
	q.core.refs.Add(1)
	return &QueuedConnection{core: q.core}
}

// Close releases this handle. Closing the last handle enqueues a close
// request behind every pending request, waits for the worker to exit and
// returns the error of closing the raw connection.
//
// If the queue doesn't drain within the close timeout, the worker is stopped
// forcibly and the remaining requests fail with mcpi.ErrConnClosed.
//
// Close is idempotent per handle.
func (q *QueuedConnection) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}

	if q.core.refs.Add(-1) > 0 {
		return nil
	}

	return q.core.close()
}

// Shutdown stops the worker immediately regardless of open handles. A request
// being processed is aborted, and queued requests fail with
// mcpi.ErrConnClosed. Shutdown returns ctx.Err() if the worker doesn't exit
// before ctx is done.
func (q *QueuedConnection) Shutdown(ctx context.Context) error {
	q.closed.Store(true)

	return q.core.shutdown(ctx)
}

func (c *core) close() error {
	c.closeOnce.Do(func() {
		c.state.ToClosing()

		deadline := time.Now().Add(c.closeTimeout)
		timer := pool.GetTimer(c.closeTimeout)

		select {
		case c.items <- queueItem{kind: closeItem}:
			pool.PutTimer(timer)
			if !pool.Wait(c.done, time.Until(deadline)) {
				c.forceStop()
			}
		case <-c.done:
			pool.PutTimer(timer)
		case <-timer.C:
			pool.PutTimer(timer)
			c.forceStop()
		}

		c.taskMgr.Wait()
	})

	<-c.done

	return c.closeErr
}

func (c *core) forceStop() {
	c.logger.Warn("queue did not drain in time, stop worker", "timeout", c.closeTimeout, "pending", len(c.items))
	c.taskMgr.Stop()
	<-c.done
}

func (c *core) shutdown(ctx context.Context) error {
	c.state.ToClosing()
	c.taskMgr.Stop()

	select {
	case <-c.done:
		c.taskMgr.Wait()
		return c.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workerTask processes one queue item per call and returns false when the
// worker must stop.
func (c *core) workerTask() bool {
	ctx := c.taskMgr.Context()

	select {
	case <-ctx.Done():
		return false

	case item := <-c.items:
		switch item.kind {
		case requestItem:
			return c.handleRequest(ctx, item.req)

		case optionsItem:
			c.raw.SetOptions(item.opts)
			c.metrics.OptionsUpdateCount.Inc()

			return true

		case closeItem:
			c.logger.Debug("close requested")
			return false
		}
	}

	return true
}

func (c *core) handleRequest(ctx context.Context, req *pendingRequest) bool {
	fulfilled := false
	defer func() {
		if !fulfilled {
			// raw panicked; the task manager recovers and stops the worker
			req.fulfill("", fmt.Errorf("%w: worker stopped", mcpi.ErrConnClosed))
			c.metrics.FailCount.Inc()
		}
	}()

	text, err := c.raw.Send(ctx, req.cmd)
	req.fulfill(text, err)
	fulfilled = true

	if err == nil {
		c.metrics.CompleteCount.Inc()
		return true
	}

	c.metrics.FailCount.Inc()

	if mcpi.IsFatal(err) {
		c.logger.Error("connection failed, stop worker", "command", req.cmd.String(), "error", err)
		return false
	}

	if ctx.Err() != nil {
		return false
	}

	return true
}

// workerExit runs once when the worker goroutine exits for any reason.
func (c *core) workerExit() {
	c.state.ToClosing()

	if err := c.raw.Close(); err != nil {
		c.closeErr = err
		c.logger.Warn("failed to close raw connection", "error", err)
	}

	close(c.done)

	dropped := 0
	for {
		select {
		case item := <-c.items:
			if item.kind == requestItem {
				item.req.fulfill("", mcpi.ErrConnClosed)
				c.metrics.FailCount.Inc()
				dropped++
			}
		default:
			c.state.ToClosed()
			c.logger.Debug("worker stopped", "dropped_requests", dropped)

			return
		}
	}
}
