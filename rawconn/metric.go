package rawconn

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CommandSendCount indicates the number of commands written to the server.
	CommandSendCount atomic.Uint64
	// ResponseRecvCount indicates the number of response frames delivered.
	ResponseRecvCount atomic.Uint64
	// TimeoutCount indicates the number of response waits that expired.
	TimeoutCount atomic.Uint64
	// StaleFrameDropCount indicates the number of late frames discarded after
	// a timeout.
	StaleFrameDropCount atomic.Uint64
	// ErrCount indicates the number of failed sends.
	ErrCount atomic.Uint64
	// OwedFrameGauge indicates the number of late frames still expected.
	OwedFrameGauge atomic.Int64
}

func (m *ConnectionMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *ConnectionMetrics) incResponseRecvCount() {
	m.ResponseRecvCount.Add(1)
}

func (m *ConnectionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incStaleFrameDropCount() {
	m.StaleFrameDropCount.Add(1)
}

func (m *ConnectionMetrics) incErrCount() {
	m.ErrCount.Add(1)
}

func (m *ConnectionMetrics) setOwedFrameGauge(n int) {
	m.OwedFrameGauge.Store(int64(n))
}
