package downloader_test

import (
	"testing"

	"pillowdl/internal/downloader"
)

func TestFilenameFromHeader(t *testing.T) {
	const id = "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no header", header: "", want: id + ".bin"},
		{name: "quoted", header: `attachment; filename="Song Title.mp3"`, want: "Song Title.mp3"},
		{name: "bare", header: "attachment; filename=track.flac", want: "track.flac"},
		{name: "extended", header: `attachment; filename*=UTF-8''%E6%9B%B2.mp3`, want: "曲.mp3"},
		{name: "malformed falls back to marker", header: `attachment; filename="a b.mp3"; broken`, want: "a b.mp3"},
		{name: "marker with trailing params", header: `inline;; filename= 'x.wav' ; size=3`, want: "x.wav"},
		{name: "path stripped", header: `attachment; filename="../../etc/passwd"`, want: "passwd"},
		{name: "windows path stripped", header: `attachment; filename="C:\dir\file.mp3"`, want: "file.mp3"},
		{name: "no filename param", header: "attachment", want: id + ".bin"},
		{name: "dot dot", header: `attachment; filename=".."`, want: id + ".bin"},
		{name: "empty quoted", header: `attachment; filename=""`, want: id + ".bin"},
		{name: "part suffix kept", header: `attachment; filename="mix.part"`, want: "mix.part"},
		{name: "leading dots trimmed", header: `attachment; filename=".mix.mp3.123.part"`, want: "mix.mp3.123.part"},
		{name: "only dots", header: `attachment; filename="..."`, want: id + ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := downloader.FilenameFromHeader(tt.header, id); got != tt.want {
				t.Errorf("FilenameFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
