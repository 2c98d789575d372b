package metadata

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/testutil"
)

func pngFile(t *testing.T, name string, seed uint64) model.ImageFile {
	t.Helper()
	data := testutil.PNG(t, 64, 48, seed)
	return model.ImageFile{
		Asset: model.ImageAsset{FileName: name, FileSizeBytes: int64(len(data)), MIMEType: "image/png"},
		Data:  data,
	}
}

func newProcessor(opts Options) *Processor {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	return NewProcessor(opts, testutil.TestLogger())
}

func TestValidate(t *testing.T) {
	png := testutil.PNG(t, 32, 32, 1)
	limits := DefaultLimits()

	tests := []struct {
		name    string
		asset   model.ImageAsset
		data    []byte
		wantErr error
	}{
		{name: "valid png", asset: model.ImageAsset{MIMEType: "image/png"}, data: png},
		{name: "jpg alias", asset: model.ImageAsset{MIMEType: "image/jpg", FileSizeBytes: 4096}},
		{name: "sniffed when type missing", asset: model.ImageAsset{}, data: png},
		{name: "unsupported type", asset: model.ImageAsset{MIMEType: "text/plain", FileSizeBytes: 4096}, wantErr: ErrUnsupportedType},
		{name: "sniffed non-image", asset: model.ImageAsset{}, data: bytes.Repeat([]byte("hello "), 500), wantErr: ErrUnsupportedType},
		{name: "too large", asset: model.ImageAsset{MIMEType: "image/png", FileSizeBytes: 60 << 20}, wantErr: ErrTooLarge},
		{name: "too small", asset: model.ImageAsset{MIMEType: "image/jpeg", FileSizeBytes: 512}, wantErr: ErrTooSmall},
		{name: "exactly max", asset: model.ImageAsset{MIMEType: "image/png", FileSizeBytes: DefaultMaxFileBytes}},
		{name: "exactly min", asset: model.ImageAsset{MIMEType: "image/png", FileSizeBytes: DefaultMinFileBytes}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.asset, tt.data, limits)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtract_PNG(t *testing.T) {
	md, err := Extract(testutil.PNG(t, 64, 48, 2))
	require.NoError(t, err)
	assert.Equal(t, 64, md.Technical.Width)
	assert.Equal(t, 48, md.Technical.Height)
	assert.Equal(t, "RGB", md.Technical.ColorSpace)
	assert.Equal(t, 8, md.Technical.BitDepth)
	assert.False(t, md.GPS.Present)
	assert.Nil(t, md.Camera.CapturedAt)
}

func TestExtract_JPEGWithEXIF(t *testing.T) {
	captured := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	data := testutil.JPEGWithEXIF(t, 80, 60, 3, testutil.EXIF{
		Make:       "FieldCam",
		Model:      "FC-200",
		CapturedAt: captured,
		HasGPS:     true,
		Lat:        47.6062,
		Lon:        122.3321,
		Alt:        123.4,
	})

	md, err := Extract(data)
	require.NoError(t, err)

	assert.Equal(t, 80, md.Technical.Width)
	assert.Equal(t, 60, md.Technical.Height)
	assert.Equal(t, "FieldCam", md.Camera.Make)
	assert.Equal(t, "FC-200", md.Camera.Model)
	require.NotNil(t, md.Camera.CapturedAt)
	assert.Equal(t, 2024, md.Camera.CapturedAt.Year())

	require.True(t, md.GPS.Present)
	assert.Equal(t, model.GPSSourceEXIF, md.GPS.Source)
	assert.InDelta(t, 47.6062, md.GPS.Latitude, 1e-5)
	assert.InDelta(t, 122.3321, md.GPS.Longitude, 1e-5)
	assert.InDelta(t, 123.4, md.GPS.Altitude, 1e-6)
}

func TestExtract_Garbage(t *testing.T) {
	_, err := Extract(bytes.Repeat([]byte{0x42}, 2048))
	assert.Error(t, err)
}

func TestFormatShutter(t *testing.T) {
	assert.Equal(t, "1/250", formatShutter(0.004))
	assert.Equal(t, "2s", formatShutter(2))
}

func TestThumbnail(t *testing.T) {
	thumb, err := Thumbnail(testutil.PNG(t, 400, 200, 4), 256)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 128, cfg.Height)
}

func TestThumbnail_SmallImageKeepsSize(t *testing.T) {
	thumb, err := Thumbnail(testutil.PNG(t, 40, 30, 5), 256)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestProcess_OversizedFileIsOnlyRejection(t *testing.T) {
	files := []model.ImageFile{
		pngFile(t, "site-1.png", 11),
		pngFile(t, "site-2.png", 12),
		pngFile(t, "site-3.png", 13),
		pngFile(t, "site-4.png", 14),
		pngFile(t, "site-5.png", 15),
	}
	files[2].Asset.FileSizeBytes = 60 << 20

	res, err := newProcessor(Options{Workers: 3}).Process(context.Background(), Request{Files: files})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "site-3.png", res.Errors[0].FileName)
	assert.Equal(t, model.ErrorKindValidation, res.Errors[0].Kind)

	require.Len(t, res.Processed, 4)
	names := make([]string, len(res.Processed))
	for i, p := range res.Processed {
		names[i] = p.Asset.FileName
		assert.Len(t, p.ContentHash, 64)
		assert.NotEmpty(t, p.Metadata.Quality.Grade)
	}
	assert.Equal(t, []string{"site-1.png", "site-2.png", "site-4.png", "site-5.png"}, names)
	assert.Len(t, res.Warnings, 4, "none of the fixtures carry GPS")
}

func TestProcess_DuplicateContent(t *testing.T) {
	a := pngFile(t, "a.png", 21)
	b := a
	b.Asset.FileName = "b.png"

	res, err := newProcessor(Options{}).Process(context.Background(), Request{Files: []model.ImageFile{a, b}})
	require.NoError(t, err)

	require.Len(t, res.Processed, 1)
	assert.Equal(t, "a.png", res.Processed[0].Asset.FileName)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrorKindDuplicate, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Message, "a.png")
}

func TestProcess_GPSOverride(t *testing.T) {
	f := pngFile(t, "marker.png", 31)
	res, err := newProcessor(Options{}).Process(context.Background(), Request{
		Files:        []model.ImageFile{f},
		GPSOverrides: map[string]model.Coordinates{"marker.png": {Lat: -33.86, Lon: 151.21, Alt: 5}},
	})
	require.NoError(t, err)
	require.Len(t, res.Processed, 1)

	gps := res.Processed[0].Metadata.GPS
	assert.True(t, gps.Present)
	assert.Equal(t, model.GPSSourceManual, gps.Source)
	assert.Equal(t, -33.86, gps.Latitude)
	assert.Empty(t, res.Warnings)
	assert.NotContains(t, res.Processed[0].Metadata.Quality.Issues, "no GPS data")
}

func TestProcess_ExtractionFailure(t *testing.T) {
	bad := model.ImageFile{
		Asset: model.ImageAsset{FileName: "corrupt.png", MIMEType: "image/png", FileSizeBytes: 4096},
		Data:  bytes.Repeat([]byte{0x00}, 4096),
	}
	good := pngFile(t, "good.png", 41)

	res, err := newProcessor(Options{}).Process(context.Background(), Request{Files: []model.ImageFile{bad, good}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrorKindExtraction, res.Errors[0].Kind)
	require.Len(t, res.Processed, 1)
	assert.Equal(t, "good.png", res.Processed[0].Asset.FileName)
}

func TestProcess_ThumbnailFailureKeepsAsset(t *testing.T) {
	full := testutil.PNG(t, 128, 128, 51)
	truncated := full[:len(full)/2] // header intact, pixel data cut
	f := model.ImageFile{
		Asset: model.ImageAsset{FileName: "partial.png", MIMEType: "image/png"},
		Data:  truncated,
	}

	res, err := newProcessor(Options{ThumbnailMaxDim: 64}).Process(context.Background(), Request{
		Files:      []model.ImageFile{f, pngFile(t, "whole.png", 52)},
		Thumbnails: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Processed, 2)
	assert.Nil(t, res.Processed[0].Thumbnail)
	assert.NotEmpty(t, res.Processed[1].Thumbnail)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.ErrorKindThumbnail, res.Errors[0].Kind)
	assert.Equal(t, "partial.png", res.Errors[0].FileName)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProcessor(Options{}).Process(ctx, Request{Files: []model.ImageFile{pngFile(t, "x.png", 61)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_GradingScenario(t *testing.T) {
	// 1600×1200 at 1.5 MB with no GPS or capture time.
	md := Grade(model.ExtractedMetadata{Technical: model.TechnicalInfo{Width: 1600, Height: 1200}}, 1_500_000)
	assert.Equal(t, model.QualityLow, md.Quality.Grade)
	assert.Contains(t, md.Quality.Issues, "no GPS data")
	assert.Contains(t, md.Quality.Issues, "no capture timestamp")
}

func TestListDirAndLoadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	write("b.png", testutil.PNG(t, 64, 64, 71))
	write("a.jpg", testutil.JPEG(t, 64, 64, 72))
	write(".hidden.png", testutil.PNG(t, 64, 64, 73))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	paths, err := ListDir(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "a.jpg", filepath.Base(paths[0]))

	files, errs := LoadFiles(append(paths, filepath.Join(dir, "missing.png")), 0)
	require.Len(t, files, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, model.ErrorKindRead, errs[0].Kind)

	assert.Equal(t, "image/jpeg", files[0].Asset.MIMEType)
	assert.Equal(t, "image/png", files[1].Asset.MIMEType)
	assert.NotEmpty(t, files[0].Data)
	assert.Equal(t, paths[0], files[0].Asset.Path)
}

func TestLoadFiles_SkipsReadingOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	data := testutil.PNG(t, 64, 64, 81)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	files, errs := LoadFiles([]string{path}, 100)
	require.Empty(t, errs)
	require.Len(t, files, 1)
	assert.Nil(t, files[0].Data)
	assert.Equal(t, int64(len(data)), files[0].Asset.FileSizeBytes)

	err := Validate(files[0].Asset, files[0].Data, Limits{MaxFileBytes: 100})
	assert.ErrorIs(t, err, ErrTooLarge)
}
