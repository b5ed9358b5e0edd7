package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

var (
	// ErrObjectNotFound signals the key has no stored object.
	ErrObjectNotFound = errors.New("media object not found")
	// ErrInvalidKey rejects keys that are empty or would escape the storage root.
	ErrInvalidKey = errors.New("invalid media key")
)

// Object is an opened media file. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Storage persists uploaded audio under flat keys.
type Storage interface {
	Save(ctx context.Context, key string, body io.ReadSeeker) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// ValidateKey accepts a single path element without separators.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// ContentTypeFor guesses a MIME type from the key extension.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
