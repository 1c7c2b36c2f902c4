package observability_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pillowdl/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTasks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	m.RecordTaskCreated()
	m.RecordTaskCreated()
	m.RecordTaskSucceeded()
	m.RecordTaskFailed()
	m.RecordBytes(100)
	m.RecordBytes(28)

	if got := testutil.ToFloat64(m.TasksCreated); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}

	if got := testutil.ToFloat64(m.TasksSucceeded); got != 1 {
		t.Errorf("succeeded = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.TasksFailed); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.DownloadBytes); got != 128 {
		t.Errorf("bytes = %v, want 128", got)
	}
}

func TestFetchGauge(t *testing.T) {
	m := observability.New(prometheus.NewRegistry())

	m.RecordFetchStarted()
	m.RecordFetchStarted()
	m.RecordFetchFinished()

	if got := testutil.ToFloat64(m.FetchesInProgress); got != 1 {
		t.Errorf("in progress = %v, want 1", got)
	}
}

func TestLabelledCounters(t *testing.T) {
	m := observability.New(prometheus.NewRegistry())

	m.RecordDownloaderRequest("native", "succeeded")
	m.RecordDownloaderError("native", "status")
	m.RecordDownloaderError("native", "status")
	m.RecordProxyFailure("socks5://p:1080")
	m.RecordHTTPRequest(http.MethodGet, "/v1/tasks/", http.StatusOK, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.DownloaderErrors.WithLabelValues("native", "status")); got != 2 {
		t.Errorf("downloader errors = %v, want 2", got)
	}

	if got := testutil.ToFloat64(m.ProxyFailures.WithLabelValues("socks5://p:1080")); got != 1 {
		t.Errorf("proxy failures = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/tasks/", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	m.RecordTaskCreated()

	rec := httptest.NewRecorder()
	observability.HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "pillowdl_tasks_created_total 1") {
		t.Errorf("metrics output misses created counter:\n%s", rec.Body.String())
	}
}
