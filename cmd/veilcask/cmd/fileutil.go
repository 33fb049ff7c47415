package cmd

import (
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
)

// mimeTypeFor guesses a file's MIME type from its extension, falling back
// to a generic octet-stream when the extension is unknown or absent.
func mimeTypeFor(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}

// parseChunkSize parses a size figure like "4MB", "512KB", "20M" into a
// byte count, for the --chunk-size flag.
func parseChunkSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty chunk size")
	}
	s = strings.TrimSuffix(s, "B")
	var mult int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk size %q: %w", s, err)
	}
	return n * mult, nil
}
