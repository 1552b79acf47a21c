package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

type fakeStats struct {
	stats crawler.UploadStats
}

func (f fakeStats) Stats() crawler.UploadStats { return f.stats }

type fakeFolders []string

func (f fakeFolders) FolderNames() []string { return f }

func newTestServer() *Server {
	return NewServer(
		fakeStats{stats: crawler.UploadStats{TotalItems: 3, SuccessfulUploads: 2, FailedUploads: 1, FoldersCached: 2}},
		fakeFolders{"benh", "benh_text"},
		RunInfo{RunID: "run-1", Seeds: []string{"https://site.example/sitemap.xml"}, StartedAt: time.Unix(100, 0).UTC()},
		zap.NewNop(),
	)
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerReadyzReflectsRun(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.JSONEq(t, `{"status":"crawling","run_id":"run-1"}`, rec.Body.String())

	server.MarkFinished()
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.JSONEq(t, `{"status":"finished","run_id":"run-1"}`, rec.Body.String())
}

func TestServerStats(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-1", body.RunID)
	require.False(t, body.Finished)
	require.Equal(t, int64(3), body.Stats.TotalItems)
	require.Equal(t, int64(1), body.Stats.FailedUploads)
}

func TestServerStatsWithoutSource(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, RunInfo{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/folders", nil))
	require.JSONEq(t, `{"count":0,"folders":[]}`, rec.Body.String())
}

func TestServerFolders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/folders", nil))
	require.JSONEq(t, `{"count":2,"folders":["benh","benh_text"]}`, rec.Body.String())
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# TYPE")
}

func TestServerMetricsLabelOpsRoutes(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	for _, path := range []string{"/v1/stats", "/v1/folders"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, `http_request_duration_seconds_count{method="GET",route="/v1/stats"}`)
	require.Contains(t, body, `http_request_duration_seconds_count{method="GET",route="/v1/folders"}`)
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	server.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- newTestServer().Serve(ctx, port) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
