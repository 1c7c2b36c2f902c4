package storage_test

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pillowdl/internal/entity"
	"pillowdl/internal/observability"
	"pillowdl/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ulikunitz/xz"
)

func newTestErrorLog(t *testing.T) (*storage.ErrorLog, *observability.Metrics) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.New(prometheus.NewRegistry())
	path := filepath.Join(t.TempDir(), "errors.txt")

	return storage.NewErrorLog(log, metrics, path), metrics
}

func TestErrorLogAppend(t *testing.T) {
	el, metrics := newTestErrorLog(t)

	if el.Exists() {
		t.Fatalf("log must not exist before the first append")
	}

	records := []entity.ErrorRecord{
		{Filename: "unknown", URL: "not a valid url at all", Reason: "no source link found"},
		{Filename: "", URL: "https://x", Reason: "bad status: 404 Not Found"},
		{Filename: "song.mp3", URL: "https://y", Reason: "read:\tconnection\nreset"},
	}

	for _, rec := range records {
		if err := el.Append(t.Context(), rec); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	if !el.Exists() {
		t.Fatalf("log must exist after append")
	}

	data, err := os.ReadFile(el.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	want := "unknown\tnot a valid url at all\tno source link found\n" +
		"unknown\thttps://x\tbad status: 404 Not Found\n" +
		"song.mp3\thttps://y\tread: connection reset\n"

	if string(data) != want {
		t.Errorf("log content =\n%q\nwant\n%q", data, want)
	}

	if got := testutil.ToFloat64(metrics.ErrorRecords); got != 3 {
		t.Errorf("error records = %v, want 3", got)
	}
}

func TestErrorLogAppendKeepsExistingContent(t *testing.T) {
	el, _ := newTestErrorLog(t)

	if err := os.WriteFile(el.Path(), []byte("old\tline\tkept\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := el.Append(t.Context(), entity.ErrorRecord{Filename: "a", URL: "b", Reason: "c"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	data, _ := os.ReadFile(el.Path())
	if string(data) != "old\tline\tkept\na\tb\tc\n" {
		t.Errorf("log content = %q", data)
	}
}

func TestErrorLogConcurrentAppend(t *testing.T) {
	el, _ := newTestErrorLog(t)

	const (
		writers = 20
		perW    = 50
	)

	reason := strings.Repeat("x", 512)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Go(func() {
			for i := range perW {
				rec := entity.ErrorRecord{
					Filename: fmt.Sprintf("w%d", w),
					URL:      fmt.Sprintf("https://example.com/%d/%d", w, i),
					Reason:   reason,
				}
				if err := el.Append(t.Context(), rec); err != nil {
					t.Errorf("Append() failed: %v", err)
				}
			}
		})
	}
	wg.Wait()

	data, err := os.ReadFile(el.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != writers*perW {
		t.Fatalf("got %d lines, want %d", len(lines), writers*perW)
	}

	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 || fields[2] != reason || !strings.HasPrefix(fields[0], "w") {
			t.Fatalf("corrupted line: %q", line)
		}
	}
}

func TestErrorLogRotate(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name        string
		content     []byte
		maxSize     int64
		wantRotated bool
	}{
		{name: "missing log", content: nil, maxSize: 10},
		{name: "disabled", content: bytes.Repeat([]byte("a\tb\tc\n"), 100), maxSize: 0},
		{name: "below limit", content: []byte("a\tb\tc\n"), maxSize: 1024},
		{name: "above limit", content: bytes.Repeat([]byte("a\tb\tc\n"), 1000), maxSize: 1024, wantRotated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, _ := newTestErrorLog(t)

			if tt.content != nil {
				if err := os.WriteFile(el.Path(), tt.content, 0o644); err != nil {
					t.Fatalf("seed log: %v", err)
				}
			}

			archive, err := el.Rotate(t.Context(), tt.maxSize, now)
			if err != nil {
				t.Fatalf("Rotate() failed: %v", err)
			}

			if !tt.wantRotated {
				if archive != "" {
					t.Fatalf("unexpected rotation to %s", archive)
				}

				return
			}

			if want := el.Path() + ".2025-03-04_05-06-07.xz"; archive != want {
				t.Errorf("archive = %q, want %q", archive, want)
			}

			if el.Exists() {
				t.Errorf("rotated log must be removed")
			}

			f, err := os.Open(archive)
			if err != nil {
				t.Fatalf("open archive: %v", err)
			}
			defer f.Close()

			r, err := xz.NewReader(f)
			if err != nil {
				t.Fatalf("xz reader: %v", err)
			}

			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}

			if !bytes.Equal(got, tt.content) {
				t.Errorf("decompressed content differs (%d vs %d bytes)", len(got), len(tt.content))
			}
		})
	}
}

func TestCleanupPartials(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, name := range []string{".a.mp3.123.part", ".b.bin.456.part", "keep.mp3", "mix.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	removed, err := storage.CleanupPartials(t.Context(), log, dir)
	if err != nil {
		t.Fatalf("CleanupPartials() failed: %v", err)
	}

	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 || entries[0].Name() != "keep.mp3" || entries[1].Name() != "mix.part" {
		t.Errorf("unexpected dir content: %v", entries)
	}

	removed, err = storage.CleanupPartials(t.Context(), log, dir)
	if err != nil || removed != 0 {
		t.Errorf("second cleanup = %d, %v", removed, err)
	}
}
