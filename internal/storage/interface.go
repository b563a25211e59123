package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageUploader stores message and post images.
type ImageUploader interface {
	UploadImage(ctx context.Context, body io.Reader, size int64, name string) (*UploadResult, error)
}

var (
	_ ImageUploader = (*S3Uploader)(nil)
	_ ImageUploader = (*LocalUploader)(nil)
)

// UploadResult describes a stored image. Name is what messages and posts
// reference in their img field.
type UploadResult struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket,omitempty"`
	Size   int64  `json:"size"`
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// getContentTypeForImage maps an extension to its MIME type.
func getContentTypeForImage(extension string) string {
	if ct, ok := imageExtensions[strings.ToLower(extension)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsImageName reports whether name has a supported image extension.
func IsImageName(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// SanitizeName strips directories and unsafe characters from a client
// supplied file name. An empty stem is replaced by a random one.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	rawExt := filepath.Ext(base)
	stem := strings.TrimLeft(keepSafe(strings.TrimSuffix(base, rawExt)), ".")
	ext := strings.ToLower(keepSafe(rawExt))
	if ext == "." {
		ext = ""
	}
	if stem == "" {
		stem = uuid.NewString()
	}
	return fmt.Sprintf("%s%s", stem, ext)
}

func keepSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
