// Package errs defines common error variables used across the application.
package errs

import "errors"

// Resolution errors. Their text is written verbatim to the error log.
var (
	// ErrNoSourceLink indicates that an input line holds no recognizable source link.
	ErrNoSourceLink = errors.New("no source link found")
	// ErrNoFileID indicates that the source link lacks a file identifier.
	ErrNoFileID = errors.New("no file ID found")
)

// Download errors.
var (
	// ErrBadStatus indicates that the download endpoint answered with a non-success status.
	ErrBadStatus = errors.New("bad status")
	// ErrDownloadFailed indicates that the download failed.
	ErrDownloadFailed = errors.New("download failed")
)

// Run errors.
var (
	// ErrNoURLs indicates that the input file yields no lines.
	ErrNoURLs = errors.New("no urls found")
	// ErrOutputDir indicates that the run output directory could not be created.
	ErrOutputDir = errors.New("create output directory")
	// ErrInvalidURL indicates that a configured URL is invalid.
	ErrInvalidURL = errors.New("invalid url")
)

// Task and storage errors.
var (
	// ErrNoTasks indicates that there are no tasks in storage.
	ErrNoTasks = errors.New("no tasks")
	// ErrTaskNil indicates that the task is nil.
	ErrTaskNil = errors.New("task is nil")
	// ErrTaskIDEmpty indicates that the task ID is empty.
	ErrTaskIDEmpty = errors.New("task id is empty")
	// ErrTaskNotFound indicates that the task is not found in storage.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinished indicates that the task already reached a terminal state.
	ErrTaskFinished = errors.New("task already finished")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)
