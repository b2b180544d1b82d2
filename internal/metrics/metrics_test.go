package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveRun("succeeded", 3*time.Second)
	m.ObserveRun("succeeded", time.Second)
	m.ObserveTransition("chat", "tool_call")
	m.ObserveScore("scored", 2)
	m.ObserveScore("skipped", 0)
	m.ObserveCuration("curated")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("chat", "tool_call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scores.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.curations.WithLabelValues("curated")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveCuration("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `job_curator_curations_total{outcome="failed"} 1`))
}
