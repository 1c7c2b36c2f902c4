// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultJobTimeout is the default timeout covering one download request and its body.
	DefaultJobTimeout = 120 * time.Second
	// DefaultJobWorkers is the default number of simultaneously active download tasks.
	DefaultJobWorkers = 15
	// DefaultChunkSize is the default size of the buffer used to stream response bodies to disk.
	DefaultChunkSize = 8 * 1024
	// DefaultSimulateTime is the default time to simulate processing in mock downloader.
	DefaultSimulateTime = 1 * time.Second
	// DefaultProgressInterval is the default redraw interval of the progress line.
	DefaultProgressInterval = 500 * time.Millisecond
	// MaxInputLineSize is the longest input line the scheduler accepts.
	MaxInputLineSize = 1024 * 1024
)

// Run layout.
const (
	// RunTimestampLayout names the per-run output directory.
	RunTimestampLayout = "2006-01-02_15-04-05"
	// UnknownFilename is recorded when a task fails before its filename is known.
	UnknownFilename = "unknown"
	// FallbackExt is appended to the identifier when the response carries no filename.
	FallbackExt = ".bin"
	// PartialExt marks files that are still being written.
	PartialExt = ".part"
)

// Console messages.
const (
	// MsgNoURLs is printed when the input file yields no lines.
	MsgNoURLs = "No URLs found."
)

// HTTP response messages.
const (
	// RespQueryParamMissing is returned when a required query parameter is missing or invalid.
	RespQueryParamMissing = "query param missing or invalid"
	// RespGetTasksFail is returned when fetching all tasks fails.
	RespGetTasksFail = "get all tasks failed"
	// RespNoTasks is returned when there are no tasks registered.
	RespNoTasks = "no tasks"
	// RespTaskRetrieved is returned when a task is successfully retrieved.
	RespTaskRetrieved = "task retrieved"
	// RespTasksRetrieved is returned when tasks are successfully retrieved.
	RespTasksRetrieved = "tasks retrieved"
	// RespTaskNotFound is returned when a task is not found.
	RespTaskNotFound = "task not found"
)

// Downloader identifiers.
const (
	// DownloaderNative is the net/http downloader identifier.
	DownloaderNative = "native"
	// DownloaderMock is the mock downloader identifier for testing.
	DownloaderMock = "mock"
)
