package queued

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// QueueMetrics contains the counters of a queued connection. Every handle of
// the connection shares the same metrics.
//
// The counters are striped, so submitters on many goroutines can increment
// them without contending on one cache line.
type QueueMetrics struct {
	// SubmitCount indicates the number of requests accepted into the queue.
	SubmitCount *xsync.Counter
	// CompleteCount indicates the number of requests answered without error.
	CompleteCount *xsync.Counter
	// FailCount indicates the number of requests answered with an error.
	FailCount *xsync.Counter
	// RejectCount indicates the number of submissions refused because the
	// queue was closed or full, or the caller gave up reserving a slot.
	RejectCount *xsync.Counter
	// AbandonCount indicates the number of callers that stopped waiting for
	// an enqueued request.
	AbandonCount *xsync.Counter
	// OptionsUpdateCount indicates the number of options updates applied by
	// the worker.
	OptionsUpdateCount *xsync.Counter
}

func newQueueMetrics() *QueueMetrics {
	return &QueueMetrics{
		SubmitCount:        xsync.NewCounter(),
		CompleteCount:      xsync.NewCounter(),
		FailCount:          xsync.NewCounter(),
		RejectCount:        xsync.NewCounter(),
		AbandonCount:       xsync.NewCounter(),
		OptionsUpdateCount: xsync.NewCounter(),
	}
}
