package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsDisabled(t *testing.T) {
	metrics.ResetRegistry()
	m := NewMetrics()
	assert.Equal(t, metrics.NewNoop(), m)
}

func TestBridgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg).(*bridgeMetrics)

	m.RecordRequest("readFile", 2*time.Millisecond, metrics.StatusSuccess)
	m.RecordRequest("readFile", time.Millisecond, metrics.StatusError)
	m.RecordRequest("readFile", time.Millisecond, metrics.StatusSuccess)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("readFile", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("readFile", metrics.StatusError)))

	m.RecordRequestStart("saveFile")
	m.RecordRequestStart("saveFile")
	m.RecordRequestEnd("saveFile")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("saveFile")))

	m.RecordBytesTransferred("saveFile", metrics.DirectionWrite, 5)
	m.RecordBytesTransferred("saveFile", metrics.DirectionWrite, 0)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("saveFile", metrics.DirectionWrite)))

	m.RecordEntryRegistered()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entriesRegistered))

	m.RecordDriverOperation("read", time.Millisecond, nil)
	m.RecordDriverOperation("read", time.Millisecond, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.driverErrors.WithLabelValues("read")))

	m.RecordConnectionAccepted("stream")
	m.SetActiveConnections("stream", 3)
	m.RecordConnectionClosed("stream")
	m.RecordRateLimited("http")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections.WithLabelValues("stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("http")))
}
