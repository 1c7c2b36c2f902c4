// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"time"
)

// TaskStatus represents the stage a download task is in.
type TaskStatus string

const (
	// TaskStatusPending indicates that the task is created and waits for a free worker.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusResolving indicates that the input line is being resolved to a source link.
	TaskStatusResolving TaskStatus = "resolving"
	// TaskStatusTranslating indicates that the source link is being turned into a download endpoint.
	TaskStatusTranslating TaskStatus = "translating"
	// TaskStatusFetching indicates that the file is being downloaded.
	TaskStatusFetching TaskStatus = "fetching"
	// TaskStatusSucceeded indicates that the file was written to the output directory.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates that the task ended with an error record.
	TaskStatusFailed TaskStatus = "failed"
)

// IsFinished reports whether the status is terminal.
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// Task binds one input line to its outcome.
type Task struct {
	UUID       string     `json:"uuid"`
	Index      int        `json:"index"`
	URL        string     `json:"url"`
	Link       string     `json:"link,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	Dir        string     `json:"-"` // run output directory
	Status     TaskStatus `json:"status"`
	Bytes      int64      `json:"bytes"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (t Task) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("uuid", t.UUID),
		slog.Int("index", t.Index),
		slog.String("url", t.URL),
		slog.String("identifier", t.Identifier),
		slog.String("filename", t.Filename),
		slog.String("status", string(t.Status)),
		slog.Int64("bytes", t.Bytes),
	)
}

// ErrorRecord is one line of the error log.
type ErrorRecord struct {
	Filename string
	URL      string
	Reason   string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r ErrorRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("filename", r.Filename),
		slog.String("url", r.URL),
		slog.String("reason", r.Reason),
	)
}

// Summary describes a finished run.
type Summary struct {
	RunID        string        `json:"runId"`
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Bytes        int64         `json:"bytes"`
	Elapsed      time.Duration `json:"elapsed"`
	OutputDir    string        `json:"outputDir"`
	ErrorLog     string        `json:"errorLog"`
	ErrorsLogged bool          `json:"errorsLogged"` // error log file exists after the run
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("total", s.Total),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
		slog.Int64("bytes", s.Bytes),
		slog.Duration("elapsed", s.Elapsed),
		slog.String("output_dir", s.OutputDir),
		slog.Bool("errors_logged", s.ErrorsLogged),
	)
}
