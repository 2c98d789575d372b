// Package model defines the core domain types for fieldmark.
//
// Types are plain structs with JSON tags so they can travel through the
// orchestrator's generic data envelope and be persisted without adapters.
// Values are treated as immutable once constructed: a re-run produces new
// instances rather than patching old ones.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ImageAsset describes one ingested image file. Immutable once ingested.
type ImageAsset struct {
	ID            uuid.UUID `json:"id"`
	FileName      string    `json:"file_name"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	MIMEType      string    `json:"mime_type"`
	LastModified  time.Time `json:"last_modified"`
	// Path is the on-disk location the asset was read from, when there is one.
	Path string `json:"path,omitempty"`
}

// ImageFile pairs an asset with its raw bytes for processing.
type ImageFile struct {
	Asset ImageAsset
	Data  []byte
}

// ErrorKind classifies a per-file error.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindExtraction ErrorKind = "extraction"
	ErrorKindThumbnail  ErrorKind = "thumbnail"
	ErrorKindDuplicate  ErrorKind = "duplicate"
	ErrorKindRead       ErrorKind = "read"
)

// FileError is a per-asset error that is reported alongside batch results
// instead of aborting the batch.
type FileError struct {
	FileName string    `json:"file_name"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

func (e FileError) Error() string {
	return e.FileName + ": " + string(e.Kind) + ": " + e.Message
}

// ProcessedAsset is the outcome of running one valid asset through
// extraction and scoring.
type ProcessedAsset struct {
	Asset       ImageAsset        `json:"asset"`
	Metadata    ExtractedMetadata `json:"metadata"`
	ContentHash string            `json:"content_hash"`
	Thumbnail   []byte            `json:"thumbnail,omitempty"`
}
