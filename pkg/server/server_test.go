package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/internal/metrics"
	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/insight"
)

type testEnv struct {
	srv     *Server
	store   *store.SQLiteStore
	metrics *metrics.Metrics
	author  *store.User
	post    *insight.Post
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	author := &store.User{Username: "alice", ReputationScore: 20}
	require.NoError(t, st.UpsertUser(ctx, author))
	post := &insight.Post{AuthorID: author.ID, Ticker: "TSLA", Sector: "Automotive", QualityScore: 75, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, st.UpsertPost(ctx, post))

	m := metrics.New()
	svc := feed.New(feed.Options{Store: st, Metrics: m, Logger: zerolog.Nop()})
	return &testEnv{
		srv:     New(svc, m, zerolog.Nop(), Config{}),
		store:   st,
		metrics: m,
		author:  author,
		post:    post,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthAndRequestID(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.HTTPRequests.WithLabelValues("/healthz", "GET", "200")))
}

func TestFeedEndpoint(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, http.MethodGet, "/api/feed?strategy=expert&page_size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "expert", body["strategy"])
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, false, body["has_next"])
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	first := posts[0].(map[string]any)
	assert.Equal(t, "TSLA", first["ticker"])
	assert.NotEmpty(t, first["explanation"])

	rec, body = e.do(t, http.MethodGet, "/api/feed?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid page", body["error"])
}

func TestRankEndpoint(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, http.MethodPost, "/api/rank", `{
		"strategy": "quality_focused",
		"preferences": {"followed_tickers": ["nvda"]},
		"posts": [
			{"id": 1, "quality_score": 20},
			{"id": 2, "ticker": "$nvda", "quality_score": 90, "like_count": null}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])
	data := body["data"].([]any)
	top := data[0].(map[string]any)
	assert.Equal(t, 2.0, top["id"])
	assert.Equal(t, "NVDA", top["ticker"])

	rec, body = e.do(t, http.MethodPost, "/api/rank", `{"posts": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", body["error"])

	rec, _ = e.do(t, http.MethodGet, "/api/rank", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoutingErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		method, path string
		status       int
		msg          string
	}{
		{http.MethodGet, "/api/rank", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodDelete, "/api/feed", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/posts/1/reactions", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/nope", http.StatusNotFound, "not found"},
		{http.MethodGet, "/nope", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec, body := e.do(t, tt.method, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestTrendEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, http.MethodGet, "/api/trends?kind=ticker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
	rec0 := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "TSLA", rec0["key"])

	rec, body = e.do(t, http.MethodGet, "/api/trends?kind=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["count"])
	assert.Equal(t, []any{}, body["data"])

	rec, body = e.do(t, http.MethodPost, "/api/trends/detect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["records"], 2)

	rec, body = e.do(t, http.MethodGet, "/api/market-trends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["count"])
}

func TestReactionAndReputation(t *testing.T) {
	e := newTestEnv(t)
	postPath := "/api/posts/" + itoa(e.post.ID) + "/reactions"

	rec, body := e.do(t, http.MethodPost, postPath, `{"user_id": 9, "kind": "helpful"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["recorded"])
	assert.InDelta(t, 21.0, body["author_reputation"], 1e-9)

	rec, body = e.do(t, http.MethodPost, postPath, `{"user_id": 9, "kind": "helpful"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["recorded"])

	rec, _ = e.do(t, http.MethodPost, postPath, `{"user_id": 9, "kind": "meh"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = e.do(t, http.MethodPost, postPath, `{"kind": "like"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = e.do(t, http.MethodPost, "/api/posts/4242/reactions", `{"user_id": 9, "kind": "like"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "post not found", body["error"])

	rec, body = e.do(t, http.MethodGet, "/api/users/"+itoa(e.author.ID)+"/reputation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["username"])
	assert.InDelta(t, 21.0, body["stored_score"], 1e-9)
	// One post at quality 75 plus one helpful reaction: 7.5 + 0.2.
	assert.InDelta(t, 7.7, body["computed_score"], 1e-9)

	rec, _ = e.do(t, http.MethodGet, "/api/users/999/reputation", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = e.do(t, http.MethodPost, "/api/reputation/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["users"])
}

func TestStrategiesAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, http.MethodGet, "/api/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, body["count"])

	rec, _ = e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedrank_http_requests_total")

	rec, body = e.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
