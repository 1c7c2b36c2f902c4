// Package progress counts finished tasks of a run and periodically prints a progress line.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pillowdl/internal/consts"
	"pillowdl/pkg/calc"
)

// Options configures the counter.
type Options struct {
	// Total is the number of tasks in the run.
	Total int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Interval is how often to redraw the progress line.
	// Default: 500ms
	Interval time.Duration
}

// Counter tracks terminal task transitions. Each task must call Add exactly once.
type Counter struct {
	opts Options

	done   atomic.Int64
	failed atomic.Int64

	startTime time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a new progress counter.
func New(opts Options) *Counter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Interval <= 0 {
		opts.Interval = consts.DefaultProgressInterval
	}

	return &Counter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins redrawing the progress line.
func (c *Counter) Start() {
	c.startTime = time.Now()

	c.wg.Go(c.updateLoop)
}

// Stop prints the final line and stops redrawing. It is safe to call more than once.
func (c *Counter) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.wg.Wait()
}

// Add records one task reaching a terminal state.
func (c *Counter) Add(failed bool) {
	if failed {
		c.failed.Add(1)
	}

	c.done.Add(1)
}

// Done returns the number of finished tasks.
func (c *Counter) Done() int {
	return int(c.done.Load())
}

// Failed returns the number of failed tasks.
func (c *Counter) Failed() int {
	return int(c.failed.Load())
}

func (c *Counter) updateLoop() {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			fmt.Fprintf(c.opts.Output, "\r%s\n", c.Line())

			return
		case <-ticker.C:
			fmt.Fprintf(c.opts.Output, "\r%s", c.Line())
		}
	}
}

// Line renders the current progress, e.g. "[pillowdl] Downloading: 12/50 files (24%), 1 failed, eta 3s".
func (c *Counter) Line() string {
	done := c.Done()
	failed := c.Failed()
	total := c.opts.Total

	line := fmt.Sprintf("[pillowdl] Downloading: %d/%d files (%d%%)", done, total, calc.Progress(done, total))

	if failed > 0 {
		line += fmt.Sprintf(", %d failed", failed)
	}

	if done > 0 && done < total && !c.startTime.IsZero() {
		line += fmt.Sprintf(", eta %s", calc.ETA(done, total, c.startTime).Round(time.Second))
	}

	return line
}
