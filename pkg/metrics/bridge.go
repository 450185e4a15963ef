package metrics

import "time"

// Request statuses reported to RecordRequest.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Transfer directions reported to RecordBytesTransferred.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// BridgeMetrics observes the native bridge.
//
// The dispatcher reports every request, the service reports bytes and
// registrations, and the instrumented driver reports each file system
// call. When no implementation is configured the no-op from NewNoop is
// used.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := promMetrics.NewMetrics()
//	svc, _ := bridge.New(bridge.Config{Metrics: m, ...})
type BridgeMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - action: Wire action name (e.g., "readFile", "createDirectory")
	//   - duration: Time taken to run the action
	//   - status: StatusSuccess, StatusError or StatusRejected
	RecordRequest(action string, duration time.Duration, status string)

	// RecordRequestStart increments the in-flight gauge of action.
	RecordRequestStart(action string)

	// RecordRequestEnd decrements the in-flight gauge of action.
	RecordRequestEnd(action string)

	// RecordBytesTransferred counts file bytes read or written.
	//
	// Parameters:
	//   - action: The action that moved the bytes
	//   - direction: DirectionRead or DirectionWrite
	//   - bytes: Decoded file bytes, not the base64 size on the wire
	RecordBytesTransferred(action, direction string, bytes int)

	// RecordEntryRegistered counts resources added to the handle registry.
	RecordEntryRegistered()

	// RecordDriverOperation records one file system driver call.
	//
	// Parameters:
	//   - operation: snake_case driver method (e.g., "read", "is_directory")
	//   - duration: Time spent in the driver
	//   - err: The driver's error, nil on success
	RecordDriverOperation(operation string, duration time.Duration, err error)
}

// TransportMetrics observes the transports carrying bridge messages. The
// transport label is the adapter protocol ("stream" or "http").
type TransportMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted(transport string)

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed(transport string)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(transport string, count int32)

	// RecordRateLimited counts requests delayed or refused by a limiter.
	RecordRateLimited(transport string)
}

// Metrics bundles every observer used by the process.
type Metrics interface {
	BridgeMetrics
	TransportMetrics
}

// noopMetrics records nothing and allocates nothing.
type noopMetrics struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordRequest(string, time.Duration, string)        {}
func (noopMetrics) RecordRequestStart(string)                          {}
func (noopMetrics) RecordRequestEnd(string)                            {}
func (noopMetrics) RecordBytesTransferred(string, string, int)         {}
func (noopMetrics) RecordEntryRegistered()                             {}
func (noopMetrics) RecordDriverOperation(string, time.Duration, error) {}
func (noopMetrics) RecordConnectionAccepted(string)                    {}
func (noopMetrics) RecordConnectionClosed(string)                      {}
func (noopMetrics) SetActiveConnections(string, int32)                 {}
func (noopMetrics) RecordRateLimited(string)                           {}
