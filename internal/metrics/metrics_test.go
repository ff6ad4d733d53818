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

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRank("balanced", 12, 3*time.Millisecond)
	m.ObserveRank("balanced", 8, time.Millisecond)
	m.ObserveMarket("quotes", "ok")
	m.ObserveMarket("quotes", "error")
	m.ObserveMarket("quotes", "ok")

	assert.Equal(t, 20.0, testutil.ToFloat64(m.RankedPosts.WithLabelValues("balanced")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MarketFetches.WithLabelValues("quotes", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RankDuration))
}

func TestInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.ReputationRecomputes.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ReputationRecomputes))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReputationRecomputes))
}

func TestHandler(t *testing.T) {
	m := New()
	m.TrendRecords.WithLabelValues("ticker").Set(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `feedrank_trend_records{kind="ticker"} 4`)
}
