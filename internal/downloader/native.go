package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pillowdl/internal/config"
	"pillowdl/internal/consts"
	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/observability"
	"pillowdl/internal/proxymgr"
	"pillowdl/internal/resolver"
	"pillowdl/internal/storage"
)

type native struct {
	log      *slog.Logger
	cfg      *config.Config
	client   *http.Client
	res      *resolver.Resolver
	proxyMgr *proxymgr.Manager
	metrics  *observability.Metrics
}

// NewNative creates the net/http downloader. proxyMgr may be nil.
func NewNative(log *slog.Logger, cfg *config.Config, client *http.Client, res *resolver.Resolver,
	proxyMgr *proxymgr.Manager, metrics *observability.Metrics,
) Downloader {
	return &native{
		log:      log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderNative)),
		cfg:      cfg,
		client:   client,
		res:      res,
		proxyMgr: proxyMgr,
		metrics:  metrics,
	}
}

func (n *native) Process(ctx context.Context, task *entity.Task, storer storage.Storer) (err error) {
	if task == nil {
		return errs.ErrTaskNil
	}

	log := n.log.With(slog.String("func", "Process"), slog.String("task_uuid", task.UUID))

	defer func() {
		if err != nil {
			n.metrics.RecordDownloaderRequest(consts.DownloaderNative, "error")
			n.metrics.RecordDownloaderError(consts.DownloaderNative, classifyProcessingError(err))

			return
		}

		n.metrics.RecordDownloaderRequest(consts.DownloaderNative, "success")
	}()

	n.advance(ctx, storer, task, entity.TaskStatusResolving)

	task.Link, err = n.res.Resolve(task.URL)
	if err != nil {
		return err
	}

	n.advance(ctx, storer, task, entity.TaskStatusTranslating)

	task.Identifier, err = resolver.Identifier(task.Link)
	if err != nil {
		return err
	}

	endpoint := n.res.Endpoint(task.Identifier)

	n.advance(ctx, storer, task, entity.TaskStatusFetching)

	log.DebugContext(ctx, "fetching", slog.String("endpoint", endpoint))

	return n.fetch(ctx, task, endpoint, storer)
}

// advance moves the task to a non-terminal stage and publishes it.
func (n *native) advance(ctx context.Context, storer storage.Storer, task *entity.Task, status entity.TaskStatus) {
	task.Status = status
	task.UpdatedAt = time.Now()

	if err := storer.UpdateTask(ctx, *task); err != nil {
		n.log.WarnContext(ctx, "update task", slog.String("task_uuid", task.UUID), slog.Any("error", err))
	}
}

func (n *native) fetch(ctx context.Context, task *entity.Task, endpoint string, storer storage.Storer) error {
	n.metrics.RecordFetchStarted()
	defer n.metrics.RecordFetchFinished()

	// the deadline covers the request and the whole body transfer
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Job.Timeout)
	defer cancel()

	ctx, used := proxymgr.Track(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := n.client.Do(req)
	n.reportProxy(used, err)

	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d %s", errs.ErrBadStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	name := FilenameFromHeader(resp.Header.Get("Content-Disposition"), task.Identifier)
	task.Filename = storer.ClaimFilename(ctx, task.Dir, name, task.Identifier)

	if err := storer.UpdateTask(ctx, *task); err != nil {
		n.log.WarnContext(ctx, "update task", slog.String("task_uuid", task.UUID), slog.Any("error", err))
	}

	written, err := writeFile(filepath.Join(task.Dir, task.Filename), resp.Body, n.cfg.Job.ChunkSize)
	task.Bytes = written
	n.metrics.RecordBytes(written)

	return err
}

func (n *native) reportProxy(used *proxymgr.Used, err error) {
	if n.proxyMgr == nil || used.Proxy() == "" {
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		n.proxyMgr.MarkFailed(used.Proxy())

		return
	}

	n.proxyMgr.MarkSuccess(used.Proxy())
}

// writeFile streams body into path in chunks of chunkSize bytes.
// Data lands in a hidden temp file ".<name>.*.part" next to path and is renamed on success;
// the temp file is removed on failure.
func writeFile(path string, body io.Reader, chunkSize int) (int64, error) {
	f, err := os.CreateTemp(filepath.Dir(path), PartialPattern(filepath.Base(path)))
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	partial := f.Name()

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(partial)

		return 0, fmt.Errorf("chmod file: %w", err)
	}

	// the wrappers hide ReadFrom/WriteTo so CopyBuffer really uses buf
	buf := make([]byte, chunkSize)

	written, err := io.CopyBuffer(struct{ io.Writer }{f}, struct{ io.Reader }{body}, buf)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(partial)

		return written, fmt.Errorf("transfer: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(partial)

		return written, fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(partial, path); err != nil {
		_ = os.Remove(partial)

		return written, fmt.Errorf("rename file: %w", err)
	}

	return written, nil
}

// PartialPattern is the os.CreateTemp pattern for an unfinished download of name.
// Final names never start with a dot, so the two sets cannot collide.
func PartialPattern(name string) string {
	return "." + name + ".*" + consts.PartialExt
}
