package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// ListDir returns the regular, non-hidden files directly inside dir, sorted
// by name. Non-image files are included so validation can report them.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("metadata: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFiles reads each path into an ImageFile. Files larger than maxBytes
// (when positive) are described but not read; validation rejects them
// without the batch ever holding their bytes. Unreadable paths become
// read errors.
func LoadFiles(paths []string, maxBytes int64) ([]model.ImageFile, []model.FileError) {
	files := make([]model.ImageFile, 0, len(paths))
	var errs []model.FileError
	for _, path := range paths {
		f, err := loadFile(path, maxBytes)
		if err != nil {
			errs = append(errs, fileError(filepath.Base(path), model.ErrorKindRead, err))
			continue
		}
		files = append(files, f)
	}
	return files, errs
}

func loadFile(path string, maxBytes int64) (model.ImageFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return model.ImageFile{}, err
	}
	if !st.Mode().IsRegular() {
		return model.ImageFile{}, fmt.Errorf("not a regular file")
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return model.ImageFile{}, err
	}

	f := model.ImageFile{Asset: model.ImageAsset{
		ID:            uuid.New(),
		FileName:      filepath.Base(path),
		FileSizeBytes: st.Size(),
		MIMEType:      normalizeType(mt.String()),
		LastModified:  st.ModTime().UTC(),
		Path:          path,
	}}
	if maxBytes > 0 && st.Size() > maxBytes {
		return f, nil
	}
	f.Data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return model.ImageFile{}, err
	}
	return f, nil
}
