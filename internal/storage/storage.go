// Package storage keeps the tasks of a run, the error log and the files they produce.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/observability"
)

// Storer defines the interface for task registry operations.
type Storer interface {
	SetTask(ctx context.Context, task entity.Task)
	UpdateTask(ctx context.Context, task entity.Task) error
	GetTaskByID(ctx context.Context, id string) (entity.Task, bool)
	GetTasks(ctx context.Context) ([]entity.Task, error)
	Counts(ctx context.Context) map[entity.TaskStatus]int

	// ClaimFilename reserves a file name inside dir for the task with the given identifier.
	// The returned name is unique among all names claimed in dir.
	ClaimFilename(ctx context.Context, dir, name, identifier string) string
}

type storage struct {
	log     *slog.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	tasks map[string]*entity.Task // task UUID : task

	claimMu sync.Mutex
	claimed map[string]struct{} // absolute file path
}

// New creates a new in-memory storage instance.
func New(log *slog.Logger, metrics *observability.Metrics) Storer {
	return &storage{
		log:     log.With(slog.String("package", "storage")),
		metrics: metrics,
		tasks:   make(map[string]*entity.Task),
		claimed: make(map[string]struct{}),
	}
}

func (stg *storage) SetTask(ctx context.Context, task entity.Task) {
	if task.UUID == "" {
		stg.log.ErrorContext(ctx, "set task: empty uuid")

		return
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	stg.tasks[task.UUID] = &task

	stg.metrics.SetStoredTasks(len(stg.tasks))
}

// UpdateTask replaces a registered task. A task that reached a terminal state is never replaced.
func (stg *storage) UpdateTask(ctx context.Context, task entity.Task) error {
	if task.UUID == "" {
		return errs.ErrTaskIDEmpty
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	cur, exists := stg.tasks[task.UUID]
	if !exists {
		return errs.ErrTaskNotFound
	}

	if cur.Status.IsFinished() {
		return fmt.Errorf("%w: %s", errs.ErrTaskFinished, cur.Status)
	}

	task.UpdatedAt = time.Now()
	stg.tasks[task.UUID] = &task

	stg.log.DebugContext(ctx, "task updated", "task", task)

	return nil
}

func (stg *storage) GetTaskByID(_ context.Context, id string) (entity.Task, bool) {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	task, ok := stg.tasks[id]
	if !ok {
		return entity.Task{}, false
	}

	return *task, true
}

// GetTasks returns copies of all tasks ordered by input line.
func (stg *storage) GetTasks(_ context.Context) ([]entity.Task, error) {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	if len(stg.tasks) == 0 {
		return nil, errs.ErrNoTasks
	}

	tasks := make([]entity.Task, 0, len(stg.tasks))
	for _, task := range stg.tasks {
		tasks = append(tasks, *task)
	}

	slices.SortFunc(tasks, func(a, b entity.Task) int { return a.Index - b.Index })

	return tasks, nil
}

func (stg *storage) Counts(_ context.Context) map[entity.TaskStatus]int {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	counts := make(map[entity.TaskStatus]int)
	for _, task := range stg.tasks {
		counts[task.Status]++
	}

	return counts
}

func (stg *storage) ClaimFilename(ctx context.Context, dir, name, identifier string) string {
	stg.claimMu.Lock()
	defer stg.claimMu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		path := filepath.Join(dir, candidate)
		if _, taken := stg.claimed[path]; !taken {
			stg.claimed[path] = struct{}{}

			if candidate != name {
				stg.log.DebugContext(ctx, "filename taken, using alternative",
					slog.String("filename", name),
					slog.String("alternative", candidate))
			}

			return candidate
		}

		switch {
		case n == 1 && identifier != "" && stem != identifier:
			candidate = fmt.Sprintf("%s.%s%s", stem, identifier, ext)
		case identifier != "" && stem != identifier:
			candidate = fmt.Sprintf("%s.%s-%d%s", stem, identifier, n, ext)
		default:
			candidate = fmt.Sprintf("%s-%d%s", stem, n+1, ext)
		}
	}
}
