// Package task manages the lifecycle of the long running goroutines owned by a
// connection, such as the queued connection worker.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-mcpi/logger"
)

// TaskFunc performs one iteration of a task. It returns true to keep running,
// or false to stop the goroutine.
type TaskFunc func() bool

// TaskCancelFunc is called exactly once when a task goroutine exits, whether it
// returned false, was cancelled or panicked.
type TaskCancelFunc func()

// startTimeout bounds how long Start waits for the goroutine to come up.
const startTimeout = 5 * time.Second

// TaskManager starts, stops and waits for task goroutines.
//
// All tasks share a context derived from the parent context given to
// NewTaskManager. Stop cancels it; Wait blocks until every task has exited and
// then prepares a fresh context so the manager can be reused.
//
// Example Usage:
//
//	taskMgr := task.NewTaskManager(ctx, logger)
//
//	_ = taskMgr.Start("worker", func() bool {
//	    // ... one unit of work ...
//	    return true
//	}, func() {
//	    // ... release resources ...
//	})
//
//	taskMgr.Stop()
//	taskMgr.Wait()
type TaskManager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
}

// NewTaskManager creates a TaskManager whose tasks stop when ctx is done.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *TaskManager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs taskFunc in a new goroutine until it returns false or the task
// context is done. cancelFunc, if not nil, runs when the goroutine exits.
//
// A panic inside taskFunc is recovered and logged, and stops the task.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc, cancelFunc TaskCancelFunc) error {
	ctx := mgr.Context()
	if ctx.Err() != nil {
		return fmt.Errorf("task manager already stopped, can't start %s", name)
	}

	mgr.logger.Debug("start task", "name", name)

	started := make(chan struct{})
	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		close(started)

		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()

		if cancelFunc != nil {
			defer cancelFunc()
		}

		mgr.runTaskLoop(ctx, name, taskFunc)
	}()

	select {
	case <-started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("timeout waiting for %s to start", name)
	}
}

// Stop signals all running tasks to exit.
func (mgr *TaskManager) Stop() {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	mgr.cancel()
}

// Wait blocks until all tasks have exited.
func (mgr *TaskManager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	}
}

// TaskCount returns the number of running tasks.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *TaskManager) runTaskLoop(ctx context.Context, name string, taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	for ctx.Err() == nil {
		if !taskFunc() {
			return
		}
	}
}
