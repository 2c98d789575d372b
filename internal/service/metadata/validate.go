// Package metadata validates field images, extracts their capture metadata
// and grades them.
//
// Each asset is handled independently: a file that fails validation or
// extraction is reported as a model.FileError and the rest of the batch
// carries on.
package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ashita-ai/fieldmark/internal/model"
)

var (
	ErrUnsupportedType = errors.New("metadata: unsupported file type")
	ErrTooLarge        = errors.New("metadata: file too large")
	ErrTooSmall        = errors.New("metadata: file too small")
	ErrDuplicate       = errors.New("metadata: duplicate content")
)

// AllowedTypes is the image allow-list.
var AllowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

// Default size bounds.
const (
	DefaultMaxFileBytes int64 = 50 << 20
	DefaultMinFileBytes int64 = 1 << 10
)

// Limits bounds what Validate accepts.
type Limits struct {
	MaxFileBytes int64
	MinFileBytes int64
}

// DefaultLimits returns the 1 KB – 50 MB bounds.
func DefaultLimits() Limits {
	return Limits{MaxFileBytes: DefaultMaxFileBytes, MinFileBytes: DefaultMinFileBytes}
}

// Validate checks an asset's type and size. Both bounds are hard
// rejections. The declared FileSizeBytes is authoritative; len(data) is
// used only when no size was declared.
func Validate(asset model.ImageAsset, data []byte, limits Limits) error {
	mt := normalizeType(asset.MIMEType)
	if mt == "" || mt == "application/octet-stream" {
		mt = DetectType(data)
	}
	if !AllowedTypes[mt] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, mt)
	}

	size := asset.FileSizeBytes
	if size == 0 {
		size = int64(len(data))
	}
	if limits.MaxFileBytes > 0 && size > limits.MaxFileBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, limits.MaxFileBytes)
	}
	if size < limits.MinFileBytes {
		return fmt.Errorf("%w: %d bytes is below %d", ErrTooSmall, size, limits.MinFileBytes)
	}
	return nil
}

// DetectType sniffs the MIME type from content.
func DetectType(data []byte) string {
	return normalizeType(mimetype.Detect(data).String())
}

// normalizeType lowercases and strips parameters ("image/png; x=y" → "image/png").
func normalizeType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "image/jpg" {
		return "image/jpeg"
	}
	return s
}
