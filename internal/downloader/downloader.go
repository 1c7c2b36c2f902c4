// Package downloader turns a download task into a file on disk.
package downloader

import (
	"context"
	"errors"
	"net"

	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/storage"
)

// Downloader defines the interface for processing one download task.
// Process reports every stage through storer and leaves the terminal status to the caller.
type Downloader interface {
	Process(ctx context.Context, task *entity.Task, storer storage.Storer) error
}

func classifyProcessingError(err error) string {
	var netErr net.Error

	switch {
	case errors.Is(err, errs.ErrNoSourceLink), errors.Is(err, errs.ErrNoFileID):
		return "resolve"
	case errors.Is(err, errs.ErrBadStatus):
		return "status"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "io"
	}
}
