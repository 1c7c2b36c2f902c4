package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"pillowdl/internal/consts"
	"pillowdl/internal/entity"
	"pillowdl/internal/observability"

	"github.com/ulikunitz/xz"
)

// fieldReplacer keeps one record on one line.
var fieldReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// ErrorLog is the append-only, tab-separated log of failed tasks.
// Appends are serialized and each record is written with a single write call.
type ErrorLog struct {
	log     *slog.Logger
	metrics *observability.Metrics
	path    string

	mu sync.Mutex
}

// NewErrorLog creates an error log writing to path. The file is created on the first append.
func NewErrorLog(log *slog.Logger, metrics *observability.Metrics, path string) *ErrorLog {
	return &ErrorLog{
		log:     log.With(slog.String("package", "storage"), slog.String("error_log", path)),
		metrics: metrics,
		path:    path,
	}
}

// Path returns the log file path.
func (el *ErrorLog) Path() string {
	return el.path
}

// Append writes one record as "filename\turl\treason\n".
func (el *ErrorLog) Append(ctx context.Context, rec entity.ErrorRecord) error {
	if rec.Filename == "" {
		rec.Filename = consts.UnknownFilename
	}

	line := fieldReplacer.Replace(rec.Filename) + "\t" +
		fieldReplacer.Replace(rec.URL) + "\t" +
		fieldReplacer.Replace(rec.Reason) + "\n"

	el.mu.Lock()
	defer el.mu.Unlock()

	f, err := os.OpenFile(el.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}

	_, err = f.WriteString(line)
	if err != nil {
		f.Close()

		return fmt.Errorf("write error log: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close error log: %w", err)
	}

	el.metrics.RecordErrorRecord()
	el.log.DebugContext(ctx, "error record appended", slog.Any("record", rec))

	return nil
}

// Exists reports whether the log file is present.
func (el *ErrorLog) Exists() bool {
	_, err := os.Stat(el.path)

	return err == nil
}

// Rotate compresses the log into "<path>.<timestamp>.xz" and removes it when it is larger than maxSize.
// It returns the archive path, or "" when nothing was rotated. maxSize <= 0 disables rotation.
func (el *ErrorLog) Rotate(ctx context.Context, maxSize int64, now time.Time) (string, error) {
	if maxSize <= 0 {
		return "", nil
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	info, err := os.Stat(el.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("stat error log: %w", err)
	}

	if info.Size() <= maxSize {
		return "", nil
	}

	archive := fmt.Sprintf("%s.%s.xz", el.path, now.Format(consts.RunTimestampLayout))

	err = compressXZ(el.path, archive)
	if err != nil {
		os.Remove(archive)

		return "", err
	}

	err = os.Remove(el.path)
	if err != nil {
		return "", fmt.Errorf("remove rotated error log: %w", err)
	}

	el.log.InfoContext(ctx, "error log rotated",
		slog.String("archive", archive),
		slog.Int64("size", info.Size()))

	return archive, nil
}

func compressXZ(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	xzWriter, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}

	_, err = io.Copy(xzWriter, in)
	if err != nil {
		return fmt.Errorf("compress error log: %w", err)
	}

	err = xzWriter.Close()
	if err != nil {
		return fmt.Errorf("close xz writer: %w", err)
	}

	err = out.Sync()
	if err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}

	return nil
}
