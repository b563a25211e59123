package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes images to a directory served as static files.
type LocalUploader struct {
	dir     string
	baseURL string
}

// NewLocalUploader creates dir if needed.
func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory images are written to.
func (u *LocalUploader) Dir() string { return u.dir }

// UploadImage writes body to dir/name, replacing any file of the same name.
func (u *LocalUploader) UploadImage(ctx context.Context, body io.Reader, size int64, name string) (*UploadResult, error) {
	name = SanitizeName(name)
	path := filepath.Join(u.dir, name)

	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(body, size+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if size >= 0 && written > size {
		return nil, fmt.Errorf("upload larger than declared size %d", size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &UploadResult{
		Name: name,
		Key:  name,
		URL:  fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), name),
		Size: written,
	}, nil
}
