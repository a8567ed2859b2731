package photostore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("photo not found")

// PhotoStore is a hierarchical file store rooted at the media root. All paths
// are slash-separated and relative to that root.
type PhotoStore interface {
	// Write creates relPath, including missing parent directories.
	Write(ctx context.Context, relPath string, r io.Reader) error
	Open(ctx context.Context, relPath string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, relPath string) error
	// RemoveTree deletes relDir and everything below it. A missing
	// directory is not an error.
	RemoveTree(ctx context.Context, relDir string) error
	// ListDirs returns the names of the immediate subdirectories of relDir.
	ListDirs(ctx context.Context, relDir string) ([]string, error)
	// ListFiles returns the relative paths of all regular files below relDir.
	ListFiles(ctx context.Context, relDir string) ([]string, error)
}

// ExtForMIME returns the file extension for an image mime type. Types without
// a fixed mapping use their subtype, so image/heic is stored as .heic.
func ExtForMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/pjpeg", "":
		return ".jpg"
	case "image/png", "image/x-png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	sub := mimeType[strings.LastIndex(mimeType, "/")+1:]
	if i := strings.IndexAny(sub, "+;"); i >= 0 {
		sub = sub[:i]
	}
	sub = strings.TrimPrefix(sub, "x-")
	ext := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, sub)
	if ext == "" {
		return ".jpg"
	}
	return "." + ext
}

func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
