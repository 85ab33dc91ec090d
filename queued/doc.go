// Package queued shares one raw MCPI connection between many goroutines.
//
// A QueuedConnection funnels every request through a bounded FIFO queue into
// a single worker, the only goroutine that touches the raw connection. The
// protocol carries no request identifiers, so processing requests strictly in
// queue order is what keeps each response matched with its command. When the
// queue is full, Send blocks until a slot frees up.
//
// Handles are reference counted: Clone returns another handle to the same
// worker, and the worker shuts down when the last handle is closed.
//
//	conn, err := queued.Dial(ctx, "localhost:4711", queued.DefaultQueueSize)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	block, err := conn.Send(ctx, commands.GetBlock(0, 0, 0))
package queued
