package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pillowdl/internal/consts"
)

// CleanupPartials removes unfinished downloads (hidden .*.part files) left in dir and returns how many were removed.
func CleanupPartials(ctx context.Context, log *slog.Logger, dir string) (int, error) {
	log = log.With(slog.String("action", "cleanup_partials"), slog.String("dir", dir))

	partials, err := filepath.Glob(filepath.Join(dir, ".*"+consts.PartialExt))
	if err != nil {
		return 0, fmt.Errorf("glob partials: %w", err)
	}

	if len(partials) == 0 {
		log.DebugContext(ctx, "no partial files found")

		return 0, nil
	}

	removed := 0

	for _, path := range partials {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			log.ErrorContext(ctx, "failed to delete partial file", slog.String("filename", path), slog.Any("error", err))

			continue
		}

		removed++

		log.DebugContext(ctx, "partial file removed", slog.String("filename", path))
	}

	log.InfoContext(ctx, "partial files removed", slog.Int("count", removed))

	return removed, nil
}
