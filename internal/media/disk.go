package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Disk stores objects as files in a single directory.
type Disk struct {
	dir string
}

// NewDisk creates dir when missing.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Save(ctx context.Context, key string, body io.ReadSeeker) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return fmt.Errorf("write media %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close media %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, key)); err != nil {
		return fmt.Errorf("store media %s: %w", key, err)
	}
	tmp = nil
	return nil
}

func (d *Disk) Open(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(d.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open media %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat media %s: %w", key, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrObjectNotFound
	}

	return &Object{
		Body:        f,
		Size:        info.Size(),
		ContentType: ContentTypeFor(key),
		ModTime:     info.ModTime(),
	}, nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("delete media %s: %w", key, err)
	}
	return nil
}
