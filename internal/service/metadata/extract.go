package metadata

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/service/quality"
)

// Assumed user range error in meters, used to turn GPS dilution of
// precision into an accuracy estimate.
const gpsUERE = 5.0

// Extract derives metadata from raw image bytes. It fails only when the
// raster header cannot be decoded; missing or damaged EXIF leaves the
// corresponding fields zero.
func Extract(data []byte) (model.ExtractedMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.ExtractedMetadata{}, fmt.Errorf("metadata: decode image header: %w", err)
	}

	md := model.ExtractedMetadata{
		Technical: model.TechnicalInfo{
			Width:      cfg.Width,
			Height:     cfg.Height,
			ColorSpace: colorSpace(cfg.ColorModel),
			BitDepth:   bitDepth(cfg.ColorModel),
		},
	}

	if x := decodeEXIF(data, format); x != nil {
		readCamera(x, &md.Camera)
		readPhotography(x, &md.Photography)
		readGPS(x, &md.GPS)
		if v, err := tagInt(x, exif.ColorSpace); err == nil && v == 1 {
			md.Technical.ColorSpace = "sRGB"
		}
	}
	return md, nil
}

// Grade fills md.Quality from md and the file size.
func Grade(md model.ExtractedMetadata, fileSize int64) model.ExtractedMetadata {
	md.Quality = quality.Score(quality.InputFor(md, fileSize))
	return md
}

func decodeEXIF(data []byte, format string) *exif.Exif {
	switch format {
	case "jpeg", "tiff":
	default:
		return nil
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil
	}
	return x
}

func readCamera(x *exif.Exif, c *model.CameraInfo) {
	c.Make = tagString(x, exif.Make)
	c.Model = tagString(x, exif.Model)
	c.Software = tagString(x, exif.Software)
	if t, err := x.DateTime(); err == nil && !t.IsZero() {
		t = t.UTC()
		c.CapturedAt = &t
	}
}

func readPhotography(x *exif.Exif, p *model.PhotographyInfo) {
	if v, err := tagRat(x, exif.FNumber); err == nil {
		p.Aperture = v
	}
	if v, err := tagRat(x, exif.ExposureTime); err == nil && v > 0 {
		p.Shutter = formatShutter(v)
	}
	if v, err := tagInt(x, exif.ISOSpeedRatings); err == nil {
		p.ISO = v
	}
	if v, err := tagRat(x, exif.FocalLength); err == nil {
		p.FocalLength = v
	}
}

func readGPS(x *exif.Exif, g *model.GPSInfo) {
	lat, lon, err := x.LatLong()
	if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return
	}
	g.Present = true
	g.Latitude = lat
	g.Longitude = lon
	g.Source = model.GPSSourceEXIF
	if alt, err := tagRat(x, exif.GPSAltitude); err == nil {
		if ref, err := tagInt(x, exif.GPSAltitudeRef); err == nil && ref == 1 {
			alt = -alt
		}
		g.Altitude = alt
	}
	if dop, err := tagRat(x, exif.GPSDOP); err == nil && dop > 0 {
		g.Accuracy = dop * gpsUERE
	}
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func tagRat(x *exif.Exif, name exif.FieldName) (float64, error) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, err
	}
	r, err := tag.Rat(0)
	if err != nil {
		return 0, err
	}
	f, _ := r.Float64()
	return f, nil
}

func tagInt(x *exif.Exif, name exif.FieldName) (int, error) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, err
	}
	return tag.Int(0)
}

// formatShutter renders exposure seconds the way cameras print them.
func formatShutter(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("1/%d", int(math.Round(1/sec)))
	}
	return fmt.Sprintf("%gs", sec)
}

func colorSpace(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "Indexed"
	}
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "Gray"
	case color.YCbCrModel, color.NYCbCrAModel:
		return "YCbCr"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGB"
	}
	return ""
}

func bitDepth(m color.Model) int {
	if _, ok := m.(color.Palette); ok {
		return 8
	}
	switch m {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return 16
	}
	return 8
}
