package model

import "time"

// QualityGrade is the coarse image quality classification.
type QualityGrade string

const (
	QualityHigh   QualityGrade = "High"
	QualityMedium QualityGrade = "Medium"
	QualityLow    QualityGrade = "Low"
)

// Rank returns the numeric rank of a grade (higher = better).
func (g QualityGrade) Rank() int {
	switch g {
	case QualityHigh:
		return 2
	case QualityMedium:
		return 1
	default:
		return 0
	}
}

// Degrade returns the grade one level below g, floored at Low.
func (g QualityGrade) Degrade() QualityGrade {
	switch g {
	case QualityHigh:
		return QualityMedium
	default:
		return QualityLow
	}
}

// Worse returns the lower of two grades.
func Worse(a, b QualityGrade) QualityGrade {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// GPSSource records where an asset's coordinates came from.
type GPSSource string

const (
	GPSSourceNone   GPSSource = ""
	GPSSourceEXIF   GPSSource = "exif"
	GPSSourceManual GPSSource = "manual"
)

// CameraInfo holds device and capture-time metadata.
type CameraInfo struct {
	Make       string     `json:"make,omitempty"`
	Model      string     `json:"model,omitempty"`
	Software   string     `json:"software,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// TechnicalInfo holds raster properties.
type TechnicalInfo struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ColorSpace string `json:"color_space,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
}

// Megapixels returns width×height in millions of pixels.
func (t TechnicalInfo) Megapixels() float64 {
	return float64(t.Width) * float64(t.Height) / 1e6
}

// PhotographyInfo holds exposure settings.
type PhotographyInfo struct {
	Aperture    float64 `json:"aperture,omitempty"`
	Shutter     string  `json:"shutter,omitempty"`
	ISO         int     `json:"iso,omitempty"`
	FocalLength float64 `json:"focal_length,omitempty"`
}

// GPSInfo holds geolocation metadata. Accuracy is in meters; zero means unknown.
type GPSInfo struct {
	Present   bool      `json:"present"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  float64   `json:"altitude"`
	Accuracy  float64   `json:"accuracy"`
	Source    GPSSource `json:"source,omitempty"`
}

// QualityInfo is the outcome of quality scoring.
type QualityInfo struct {
	Grade           QualityGrade `json:"grade"`
	Issues          []string     `json:"issues"`
	Recommendations []string     `json:"recommendations"`
}

// ExtractedMetadata is derived deterministically from one ImageAsset and
// never mutated after creation.
type ExtractedMetadata struct {
	Camera      CameraInfo      `json:"camera"`
	Technical   TechnicalInfo   `json:"technical"`
	Photography PhotographyInfo `json:"photography"`
	GPS         GPSInfo         `json:"gps"`
	Quality     QualityInfo     `json:"quality"`
}
