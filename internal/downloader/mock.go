package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"pillowdl/internal/consts"
	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/storage"
)

// Mock simulates downloads without network or disk access.
// Tasks whose URL contains FailMarker fail; all others succeed after Delay.
type Mock struct {
	log *slog.Logger

	Delay      time.Duration
	FailMarker string

	active atomic.Int64
	peak   atomic.Int64
	calls  atomic.Int64
}

// NewMock creates a mock downloader. A non-positive delay uses the default simulate time.
func NewMock(log *slog.Logger, delay time.Duration) *Mock {
	if delay <= 0 {
		delay = consts.DefaultSimulateTime
	}

	return &Mock{
		log:        log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderMock)),
		Delay:      delay,
		FailMarker: "fail",
	}
}

func (m *Mock) Process(ctx context.Context, task *entity.Task, storer storage.Storer) error {
	if task == nil {
		return errs.ErrTaskNil
	}

	m.calls.Add(1)

	active := m.active.Add(1)
	defer m.active.Add(-1)

	for {
		peak := m.peak.Load()
		if active <= peak || m.peak.CompareAndSwap(peak, active) {
			break
		}
	}

	task.Status = entity.TaskStatusFetching
	task.UpdatedAt = time.Now()

	if err := storer.UpdateTask(ctx, *task); err != nil {
		m.log.WarnContext(ctx, "update task", slog.Any("error", err))
	}

	timer := time.NewTimer(m.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if m.FailMarker != "" && strings.Contains(task.URL, m.FailMarker) {
		return fmt.Errorf("%w: simulated", errs.ErrDownloadFailed)
	}

	task.Filename = fmt.Sprintf("%d%s", task.Index, consts.FallbackExt)

	m.log.DebugContext(ctx, "simulated download", slog.String("task_uuid", task.UUID))

	return nil
}

// Peak returns the highest number of simultaneous Process calls seen.
func (m *Mock) Peak() int {
	return int(m.peak.Load())
}

// Calls returns the number of Process calls.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}
