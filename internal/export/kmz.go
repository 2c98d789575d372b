package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/integrity"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// Manifest is written to manifest.json inside the archive.
type Manifest struct {
	Title        string                 `json:"title,omitempty"`
	GeneratedAt  time.Time              `json:"generated_at"`
	EvidenceRoot string                 `json:"evidence_root,omitempty"`
	Statistics   model.ExportStatistics `json:"statistics"`
	Assets       []ManifestAsset        `json:"assets"`
}

// ManifestAsset lists one placemark's archive entries.
type ManifestAsset struct {
	PlacemarkID uuid.UUID `json:"placemark_id"`
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash,omitempty"`
	File        string    `json:"file,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// WriteKMZ packages the bundle into a KMZ at path:
//
//	doc.kml                 primary document
//	files/<name>            original images (placemarks with a SourcePath)
//	thumbnails/<id>.jpg     previews
//	data/placemarks.csv     tabular export
//	data/placemarks.geojson point features
//	data/map.json           web-map config
//	manifest.json
//
// Originals are re-hashed while copied; a file whose bytes no longer match
// the placemark's ContentHash fails the package. The archive is built in a
// temp file next to path and renamed into place only on success.
func WriteKMZ(path string, bundle model.ExportBundle, placemarks []model.Placemark, m Manifest) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fieldmark-*.kmz.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPackaging, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	if err := writeEntry(zw, "doc.kml", zip.Deflate, []byte(bundle.PrimaryDocument)); err != nil {
		return err
	}

	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now().UTC()
	}
	m.Statistics = bundle.Statistics
	m.Assets = make([]ManifestAsset, 0, len(placemarks))
	used := map[string]bool{}
	for _, p := range placemarks {
		entry := ManifestAsset{PlacemarkID: p.ID, Name: p.Name, ContentHash: p.ContentHash}
		if p.SourcePath != "" {
			name := "files/" + p.Name
			if used[name] {
				name = "files/" + p.ID.String()[:8] + "-" + p.Name
			}
			used[name] = true
			if err := copyOriginal(zw, name, p); err != nil {
				return err
			}
			entry.File = name
		}
		if len(p.Thumbnail) > 0 {
			entry.Thumbnail = thumbnailEntry(p)
			if err := writeEntry(zw, entry.Thumbnail, zip.Store, p.Thumbnail); err != nil {
				return err
			}
		}
		m.Assets = append(m.Assets, entry)
	}

	mapJSON, err := json.MarshalIndent(bundle.AuxiliaryExports.WebMapConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode map config: %w", ErrPackaging, err)
	}
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %w", ErrPackaging, err)
	}
	for _, e := range []struct {
		name string
		data []byte
	}{
		{"data/placemarks.csv", []byte(bundle.AuxiliaryExports.CSV)},
		{"data/placemarks.geojson", []byte(bundle.AuxiliaryExports.GeoJSON)},
		{"data/map.json", mapJSON},
		{"manifest.json", manifest},
	} {
		if err := writeEntry(zw, e.name, zip.Deflate, e.data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finalize archive: %w", ErrPackaging, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync archive: %w", ErrPackaging, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close archive: %w", ErrPackaging, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename archive: %w", ErrPackaging, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPackaging, name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPackaging, name, err)
	}
	return nil
}

func copyOriginal(zw *zip.Writer, name string, p model.Placemark) error {
	f, err := os.Open(p.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPackaging, p.SourcePath, err)
	}
	defer func() { _ = f.Close() }()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPackaging, name, err)
	}
	hash, err := integrity.ContentHashReader(io.TeeReader(f, w))
	if err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrPackaging, p.SourcePath, err)
	}
	if p.ContentHash != "" && hash != p.ContentHash {
		return fmt.Errorf("%w: %s changed since it was processed", ErrPackaging, p.SourcePath)
	}
	return nil
}
