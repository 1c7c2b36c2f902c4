package downloader

import (
	"mime"
	"path"
	"strings"

	"pillowdl/internal/consts"
)

const filenameMarker = "filename="

// FilenameFromHeader derives the output file name from a Content-Disposition value.
// Without a usable name it falls back to "<identifier>.bin".
func FilenameFromHeader(header, identifier string) string {
	name := ""

	if header != "" {
		if _, params, err := mime.ParseMediaType(header); err == nil {
			name = params["filename"]
		}

		// malformed headers still often carry a plain filename= marker
		if name == "" {
			if i := strings.LastIndex(header, filenameMarker); i >= 0 {
				name, _, _ = strings.Cut(header[i+len(filenameMarker):], ";")
				name = strings.Trim(strings.TrimSpace(name), `"'`)
			}
		}
	}

	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))

	// leading dots are reserved for unfinished downloads
	name = strings.TrimLeft(name, ".")

	if name == "" || name == "/" {
		return identifier + consts.FallbackExt
	}

	return name
}
