package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Fetch("data")
	m.Fetch("data")
	m.Fetch("failure")
	m.Rows("local", 3, 1, 0)
	m.DestinationError("local")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsUpserted.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DestErrors.WithLabelValues("local")))
}

func TestNilIsNoop(t *testing.T) {
	var m *Metrics
	m.Fetch("data")
	m.Rows("x", 1, 1, 1)
	m.DestinationError("x")
	m.RunFinished(time.Second, time.Now())
}

func TestHandler(t *testing.T) {
	m := New()
	m.RunFinished(2*time.Second, time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "fredflow_run_duration_seconds_count 1")
	assert.Contains(t, string(body), "fredflow_last_run_timestamp_seconds 1.7e+09")
}
