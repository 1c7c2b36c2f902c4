//go:build integration
// +build integration

package integration_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pillowdl/internal/config"
	"pillowdl/internal/downloader"
	"pillowdl/internal/entity"
	httprouter "pillowdl/internal/infrastructure/delivery/http"
	"pillowdl/internal/observability"
	"pillowdl/internal/resolver"
	"pillowdl/internal/service"
	"pillowdl/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
)

type apiResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	cfg     *config.Config
	svc     service.Scheduler
	client  *http.Client
	url     string
	release chan struct{}
}

// newFixture wires the whole stack: a fake file host, the scheduler and the status server.
// The file host holds every request until release is closed.
func newFixture(t *testing.T, lines []string) *fixture {
	t.Helper()

	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/download/{id}", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}

		id := r.PathValue("id")
		if strings.HasPrefix(id, "0") {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mp3"`, id[len(id)-6:]))
		_, _ = io.WriteString(w, strings.Repeat("z", 4096))
	})

	host := httptest.NewServer(mux)
	t.Cleanup(host.Close)

	root := t.TempDir()
	input := filepath.Join(root, "onlyfiles.txt")

	if err := os.WriteFile(input, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	t.Setenv("PILLOWDL_INPUT_FILE", input)
	t.Setenv("PILLOWDL_DIR_DOWNLOADS", filepath.Join(root, "downloads"))
	t.Setenv("PILLOWDL_ERRLOG_PATH", filepath.Join(root, "errors.txt"))
	t.Setenv("PILLOWDL_API_BASE", host.URL+"/api/download")
	t.Setenv("PILLOWDL_JOB_WORKERS", "3")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics := observability.New(reg)
	storer := storage.New(log, metrics)
	errLog := storage.NewErrorLog(log, metrics, cfg.ErrorLog.Path)
	res := resolver.New(cfg.Source.Host, cfg.Source.APIBase)
	dl := downloader.NewNative(log, cfg, downloader.NewHTTPClient(cfg, nil), res, nil, metrics)

	router := httprouter.New(log, storer, metrics, observability.HandlerFor(reg))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := server.Client()
	client.Timeout = 3 * time.Second

	return &fixture{
		cfg:     cfg,
		svc:     service.New(cfg, log, dl, storer, errLog, metrics),
		client:  client,
		url:     server.URL,
		release: release,
	}
}

func (fx *fixture) tasks(t *testing.T) httprouter.TasksView {
	t.Helper()

	resp, err := fx.client.Get(fx.url + "/v1/tasks/")
	if err != nil {
		t.Fatalf("get tasks: %v", err)
	}
	defer resp.Body.Close()

	var view httprouter.TasksView

	if resp.StatusCode == http.StatusNoContent {
		return view
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if err := json.Unmarshal(decoded.Data, &view); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}

	return view
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %s", timeout)
}

func TestRunObservedThroughStatusServer(t *testing.T) {
	lines := []string{
		"https://pillowcase.su/f/aaaaaaaaaaaaaaaaaaaaaaaaaa111111",
		"https://pillowcase.su/f/bbbbbbbbbbbbbbbbbbbbbbbbbb222222",
		"not a valid url at all",
		"https://pillowcase.su/f/00000000000000000000000000000000",
		"mirror: https://pillowcase.su/f/cccccccccccccccccccccccccc333333",
	}

	fx := newFixture(t, lines)

	type result struct {
		summary *entity.Summary
		err     error
	}

	done := make(chan result, 1)

	go func() {
		summary, err := fx.svc.Run(t.Context())
		done <- result{summary, err}
	}()

	// three workers park on the held file host
	waitFor(t, 3*time.Second, func() bool {
		return fx.tasks(t).Counts[entity.TaskStatusFetching] == 3
	})

	close(fx.release)

	var res result
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish")
	}

	if res.err != nil {
		t.Fatalf("Run() failed: %v", res.err)
	}

	if res.summary.Succeeded != 3 || res.summary.Failed != 2 {
		t.Errorf("summary = %+v", res.summary)
	}

	view := fx.tasks(t)
	if len(view.Tasks) != len(lines) {
		t.Fatalf("tasks = %d, want %d", len(view.Tasks), len(lines))
	}

	for i, task := range view.Tasks {
		if task.Index != i || !task.Status.IsFinished() {
			t.Errorf("task %d = %+v", i, task)
		}
	}

	if view.Tasks[2].Error != "no source link found" || view.Tasks[3].Error != "bad status: 404 Not Found" {
		t.Errorf("errors = %q, %q", view.Tasks[2].Error, view.Tasks[3].Error)
	}

	entries, err := os.ReadDir(res.summary.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}

	if len(entries) != 3 {
		t.Errorf("output files = %d, want 3", len(entries))
	}

	data, err := os.ReadFile(fx.cfg.ErrorLog.Path)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}

	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("error records = %d, want 2", got)
	}

	resp, err := fx.client.Get(fx.url + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "pillowdl_tasks_succeeded_total 3") {
		t.Errorf("metrics lack succeeded counter")
	}
}
