package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/fieldmark/internal/model"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		grade  model.QualityGrade
		issues []string
	}{
		{
			name:   "complete high resolution",
			in:     Input{Width: 4000, Height: 3000, FileSize: 4_000_000, HasGPS: true, HasTimestamp: true},
			grade:  model.QualityHigh,
			issues: []string{},
		},
		{
			name:   "missing gps only",
			in:     Input{Width: 4000, Height: 3000, FileSize: 4_000_000, HasTimestamp: true},
			grade:  model.QualityMedium,
			issues: []string{IssueNoGPS},
		},
		{
			name:   "low resolution only",
			in:     Input{Width: 1600, Height: 1200, FileSize: 1_500_000, HasGPS: true, HasTimestamp: true},
			grade:  model.QualityMedium,
			issues: []string{IssueLowResolution},
		},
		{
			name:   "small field image without gps or timestamp",
			in:     Input{Width: 1600, Height: 1200, FileSize: 1_500_000},
			grade:  model.QualityLow,
			issues: []string{IssueLowResolution, IssueNoGPS, IssueNoTimestamp},
		},
		{
			name:   "heavily compressed",
			in:     Input{Width: 4000, Height: 3000, FileSize: 1_000_000, HasGPS: true, HasTimestamp: true},
			grade:  model.QualityMedium,
			issues: []string{IssueHighCompression},
		},
		{
			name:   "low resolution and compressed",
			in:     Input{Width: 1000, Height: 1000, FileSize: 50_000, HasGPS: true, HasTimestamp: true},
			grade:  model.QualityLow,
			issues: []string{IssueLowResolution, IssueHighCompression},
		},
		{
			name:   "unknown dimensions skip compression",
			in:     Input{FileSize: 10, HasGPS: true, HasTimestamp: true},
			grade:  model.QualityMedium,
			issues: []string{IssueLowResolution},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			assert.Equal(t, tt.grade, got.Grade)
			assert.Equal(t, tt.issues, got.Issues)
			assert.Len(t, got.Recommendations, len(got.Issues))
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	in := Input{Width: 1920, Height: 1080, FileSize: 900_000, HasGPS: false, HasTimestamp: true}
	first := Score(in)
	for range 10 {
		assert.Equal(t, first, Score(in))
	}
}

func TestScore_RecommendationsFollowIssues(t *testing.T) {
	got := Score(Input{Width: 100, Height: 100, FileSize: 2_000})
	for i, issue := range got.Issues {
		assert.Equal(t, Recommendations[issue], got.Recommendations[i])
	}
}

func TestInputFor(t *testing.T) {
	md := model.ExtractedMetadata{
		Technical: model.TechnicalInfo{Width: 640, Height: 480},
		GPS:       model.GPSInfo{Present: true},
	}
	in := InputFor(md, 12345)
	assert.Equal(t, Input{Width: 640, Height: 480, FileSize: 12345, HasGPS: true}, in)
}
