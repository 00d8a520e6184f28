package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsOutcomes(t *testing.T) {
	m := New()
	m.Observe("router", "simulation", 200*time.Millisecond)
	m.Observe("router", "simulation", time.Second)
	m.Observe("aggregator", "success", time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("router", "simulation")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("aggregator", "success")))
	require.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("router", "success", time.Second)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Observe("aggregator", "quote", time.Second)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `swap_relay_outcomes_total{mode="aggregator",outcome="quote"} 1`)
	require.Contains(t, string(body), "swap_relay_duration_seconds_bucket")
}
