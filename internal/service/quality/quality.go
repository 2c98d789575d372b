// Package quality grades field images.
//
// Grading is a pure function of raster size, file size and metadata
// completeness, so the same inputs always give the same grade and issues
// regardless of the order assets are processed in.
package quality

import (
	"github.com/ashita-ai/fieldmark/internal/model"
)

// Issue strings. They double as keys into the recommendations table.
const (
	IssueLowResolution   = "low resolution"
	IssueHighCompression = "high compression"
	IssueNoGPS           = "no GPS data"
	IssueNoTimestamp     = "no capture timestamp"
)

// Thresholds.
const (
	MinMegapixels       = 2.0
	MinCompressionRatio = 0.1 // bytes per pixel
)

// Recommendations maps each issue to the operator guidance shown with it.
var Recommendations = map[string]string{
	IssueLowResolution:   "Capture at 2 MP or higher; check the camera's image size setting.",
	IssueHighCompression: "Use a higher JPEG quality setting or a lossless format.",
	IssueNoGPS:           "Enable location services on the capture device or supply a manual GPS override.",
	IssueNoTimestamp:     "Set the device clock and keep original EXIF data when transferring files.",
}

// Input is everything grading depends on.
type Input struct {
	Width        int
	Height       int
	FileSize     int64
	HasGPS       bool
	HasTimestamp bool
}

// InputFor derives the grading input from extracted metadata.
func InputFor(md model.ExtractedMetadata, fileSize int64) Input {
	return Input{
		Width:        md.Technical.Width,
		Height:       md.Technical.Height,
		FileSize:     fileSize,
		HasGPS:       md.GPS.Present,
		HasTimestamp: md.Camera.CapturedAt != nil,
	}
}

// Score grades an image.
//
// Rules, applied in this order:
//   - megapixels < 2: "low resolution", degrade one level
//   - bytes per pixel < 0.1: "high compression", degrade one level
//   - no GPS: "no GPS data" (counted, does not degrade on its own)
//   - no capture time: "no capture timestamp"
//
// The final grade is the worse of the degraded grade and the issue-count
// mapping (0 → High, 1 → Medium, 2+ → Low). Unknown dimensions count as
// 0 MP and skip the compression check.
func Score(in Input) model.QualityInfo {
	grade := model.QualityHigh
	issues := []string{}

	pixels := float64(in.Width) * float64(in.Height)
	if pixels/1e6 < MinMegapixels {
		issues = append(issues, IssueLowResolution)
		grade = grade.Degrade()
	}
	if pixels > 0 && float64(in.FileSize)/pixels < MinCompressionRatio {
		issues = append(issues, IssueHighCompression)
		grade = grade.Degrade()
	}
	if !in.HasGPS {
		issues = append(issues, IssueNoGPS)
	}
	if !in.HasTimestamp {
		issues = append(issues, IssueNoTimestamp)
	}

	recs := make([]string, 0, len(issues))
	for _, issue := range issues {
		recs = append(recs, Recommendations[issue])
	}

	return model.QualityInfo{
		Grade:           model.Worse(grade, byIssueCount(len(issues))),
		Issues:          issues,
		Recommendations: recs,
	}
}

func byIssueCount(n int) model.QualityGrade {
	switch {
	case n == 0:
		return model.QualityHigh
	case n == 1:
		return model.QualityMedium
	default:
		return model.QualityLow
	}
}
