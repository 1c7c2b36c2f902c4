// Package service schedules one download task per input line and collects the run summary.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pillowdl/internal/config"
	"pillowdl/internal/consts"
	"pillowdl/internal/downloader"
	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/observability"
	"pillowdl/internal/progress"
	"pillowdl/internal/storage"
	"pillowdl/pkg/gen"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs a batch of downloads.
type Scheduler interface {
	// Run processes every line of the input file and blocks until each has an outcome.
	Run(ctx context.Context) (*entity.Summary, error)
}

type scheduler struct {
	log        *slog.Logger
	cfg        *config.Config
	downloader downloader.Downloader
	storer     storage.Storer
	errLog     *storage.ErrorLog
	metrics    *observability.Metrics

	now         func() time.Time
	progressOut io.Writer
}

var _ Scheduler = (*scheduler)(nil)

// New creates a scheduler.
func New(cfg *config.Config, log *slog.Logger, dl downloader.Downloader, storer storage.Storer,
	errLog *storage.ErrorLog, metrics *observability.Metrics,
) Scheduler {
	return &scheduler{
		log:         log.With(slog.String("package", "service")),
		cfg:         cfg,
		downloader:  dl,
		storer:      storer,
		errLog:      errLog,
		metrics:     metrics,
		now:         time.Now,
		progressOut: os.Stderr,
	}
}

func (svc *scheduler) Run(ctx context.Context) (*entity.Summary, error) {
	log := svc.log.With(slog.String("func", "Run"))

	started := svc.now()

	lines, err := readLines(svc.cfg.App.InputFile)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if len(lines) == 0 {
		return nil, errs.ErrNoURLs
	}

	dir, err := createRunDir(svc.cfg.Dir.Downloads, started.Format(consts.RunTimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", errs.ErrOutputDir, dir, err)
	}

	runID := gen.RunID()
	tasks := svc.createTasks(ctx, runID, dir, lines, started)

	workers := min(svc.cfg.Job.Workers, len(tasks))

	log.InfoContext(ctx, "run started",
		slog.String("run_id", runID),
		slog.Int("tasks", len(tasks)),
		slog.Int("workers", workers),
		slog.String("output_dir", dir))

	counter := progress.New(progress.Options{
		Total:    len(tasks),
		Output:   svc.progressOut,
		Interval: svc.cfg.Progress.Interval,
	})
	counter.Start()

	var g errgroup.Group
	g.SetLimit(workers)

	// every task is scheduled even after cancellation so each line still gets an outcome
	for _, task := range tasks {
		g.Go(func() error {
			counter.Add(svc.processTask(ctx, task))

			return nil
		})
	}

	_ = g.Wait()

	counter.Stop()

	if removed, err := storage.CleanupPartials(ctx, svc.log, dir); err != nil {
		log.WarnContext(ctx, "cleanup partials", slog.Any("error", err))
	} else if removed > 0 {
		svc.metrics.RecordPartialsRemoved(removed)
	}

	summary := &entity.Summary{
		RunID:        runID,
		Total:        len(tasks),
		Elapsed:      svc.now().Sub(started),
		OutputDir:    dir,
		ErrorLog:     svc.errLog.Path(),
		ErrorsLogged: svc.errLog.Exists(),
	}

	for _, task := range tasks {
		switch task.Status {
		case entity.TaskStatusSucceeded:
			summary.Succeeded++
			summary.Bytes += task.Bytes
		case entity.TaskStatusFailed:
			summary.Failed++
		}
	}

	log.InfoContext(ctx, "run finished", slog.Any("summary", *summary))

	return summary, nil
}

func (svc *scheduler) createTasks(ctx context.Context, runID, dir string, lines []string, now time.Time) []*entity.Task {
	tasks := make([]*entity.Task, 0, len(lines))

	for i, line := range lines {
		task := &entity.Task{
			UUID:      gen.TaskID(runID, i, line),
			Index:     i,
			URL:       line,
			Dir:       dir,
			Status:    entity.TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		svc.storer.SetTask(ctx, *task)
		svc.metrics.RecordTaskCreated()

		tasks = append(tasks, task)
	}

	return tasks
}

// processTask drives one task to a terminal state and reports whether it failed.
// Errors never leave this function.
func (svc *scheduler) processTask(ctx context.Context, task *entity.Task) (failed bool) {
	log := svc.log.With(slog.String("func", "processTask"), slog.String("task_uuid", task.UUID))

	stopTimer := svc.metrics.TaskTimer()
	defer stopTimer()

	err := ctx.Err()
	if err == nil {
		err = svc.downloader.Process(ctx, task, svc.storer)
	}

	if err != nil {
		svc.finish(ctx, task, entity.TaskStatusFailed, err.Error())
		svc.metrics.RecordTaskFailed()

		rec := entity.ErrorRecord{Filename: task.Filename, URL: task.URL, Reason: err.Error()}
		if appendErr := svc.errLog.Append(ctx, rec); appendErr != nil {
			log.ErrorContext(ctx, "append error record", slog.Any("record", rec), slog.Any("error", appendErr))
		}

		log.DebugContext(ctx, "task failed", slog.Any("task", *task), slog.Any("error", err))

		return true
	}

	svc.finish(ctx, task, entity.TaskStatusSucceeded, "")
	svc.metrics.RecordTaskSucceeded()

	log.DebugContext(ctx, "task succeeded", slog.Any("task", *task))

	return false
}

func (svc *scheduler) finish(ctx context.Context, task *entity.Task, status entity.TaskStatus, reason string) {
	task.Status = status
	task.Error = reason
	task.UpdatedAt = svc.now()

	if err := svc.storer.UpdateTask(ctx, *task); err != nil {
		svc.log.WarnContext(ctx, "update task", slog.String("task_uuid", task.UUID), slog.Any("error", err))
	}
}

// createRunDir creates a fresh run folder named stamp under base.
// A folder left by an earlier run in the same second is never reused; "_2", "_3", ... are tried instead.
func createRunDir(base, stamp string) (string, error) {
	dir := filepath.Join(base, stamp)

	if err := os.MkdirAll(base, 0o755); err != nil {
		return dir, err
	}

	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return dir, err
		}

		dir = filepath.Join(base, fmt.Sprintf("%s_%d", stamp, n))
	}
}

// readLines returns the non-empty, whitespace-trimmed lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), consts.MaxInputLineSize)

	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return lines, nil
}
