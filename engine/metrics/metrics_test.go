package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.SetPending(3)
	m.IncrementHandled("x")
	m.IncrementJudgement("reasonable")
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncrementJudgement("reasonable")
	m.IncrementJudgement("reasonable")
	m.SetPending(4)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Judgements.WithLabelValues("reasonable")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PendingIdentities))
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).SetPending(1)
	healthErr := errors.New("watcher down")
	var unhealthy atomic.Bool
	srv := httptest.NewServer(Router(reg, func() error {
		if unhealthy.Load() {
			return healthErr
		}
		return nil
	}))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.True(t, strings.Contains(string(body), "registrar_pending_identities 1"))

	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	unhealthy.Store(true)
	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
