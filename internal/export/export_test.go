package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/fieldmark/internal/integrity"
	"github.com/ashita-ai/fieldmark/internal/model"
)

func placemark(name string, lat, lon float64) model.Placemark {
	return model.Placemark{
		ID:          uuid.New(),
		Name:        name,
		Coordinates: model.Coordinates{Lat: lat, Lon: lon, Alt: 12.5},
		StyleKey:    "quality-high",
		Quality:     model.QualityHigh,
		FileSize:    2048,
		CameraModel: "FC-200",
		GPSAccuracy: 4,
		GPSSource:   model.GPSSourceEXIF,
	}
}

// kmlTree is a loose decode target for checking document structure.
type kmlTree struct {
	Document struct {
		Name    string       `xml:"name"`
		Folders []kmlTreeDir `xml:"Folder"`
	} `xml:"Document"`
}

type kmlTreeDir struct {
	Name       string       `xml:"name"`
	Folders    []kmlTreeDir `xml:"Folder"`
	Placemarks []struct {
		Name string `xml:"name"`
		Data []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value"`
		} `xml:"ExtendedData>Data"`
		Point struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"Point"`
		Polygon struct {
			Coordinates string `xml:"outerBoundaryIs>LinearRing>coordinates"`
		} `xml:"Polygon"`
	} `xml:"Placemark"`
}

func decodeKML(t *testing.T, doc string) kmlTree {
	t.Helper()
	require.True(t, strings.HasPrefix(doc, xml.Header))
	var tree kmlTree
	require.NoError(t, xml.Unmarshal([]byte(doc), &tree))
	return tree
}

func TestKML_FlatPlacemarks(t *testing.T) {
	p := placemark("north <field>.jpg", 45.5, -122.25)
	doc, err := KML([]model.Placemark{p}, nil, Options{
		Title: "Site A",
		ContextLayers: []model.ContextLayer{
			{Type: "boundary", Name: "Lease", Features: []model.ContextFeature{{
				Name:    "Lease line",
				Polygon: [][]model.Coordinates{{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}},
			}}},
			{Type: "hazard", Features: []model.ContextFeature{{Name: "Well", Point: &model.Coordinates{Lat: 2, Lon: 3}}}},
			{Type: "boundary", Features: []model.ContextFeature{{Name: "Empty feature"}}},
		},
	})
	require.NoError(t, err)

	tree := decodeKML(t, doc)
	assert.Equal(t, "Site A", tree.Document.Name)
	require.Len(t, tree.Document.Folders, 3)
	assert.Equal(t, "boundary", tree.Document.Folders[0].Name)
	assert.Equal(t, "hazard", tree.Document.Folders[1].Name)
	assert.Equal(t, fieldFolderName, tree.Document.Folders[2].Name)

	boundary := tree.Document.Folders[0]
	require.Len(t, boundary.Placemarks, 1, "features without geometry are dropped")
	// Zero altitudes are omitted.
	assert.Equal(t, "0,0 1,0 1,1 0,0", boundary.Placemarks[0].Polygon.Coordinates)
	assert.Equal(t, "3,2", tree.Document.Folders[1].Placemarks[0].Point.Coordinates)

	field := tree.Document.Folders[2]
	require.Len(t, field.Placemarks, 1)
	got := field.Placemarks[0]
	assert.Equal(t, "north <field>.jpg", got.Name)
	assert.Equal(t, "-122.25,45.5,12.5", got.Point.Coordinates)

	data := map[string]string{}
	for _, d := range got.Data {
		data[d.Name] = d.Value
	}
	assert.Equal(t, map[string]string{
		"fileSize":    "2048",
		"quality":     "High",
		"cameraModel": "FC-200",
		"gpsAccuracy": "4",
		"gpsSource":   "exif",
	}, data)
}

func TestKML_ClusterFolders(t *testing.T) {
	a, b, c := placemark("a", 1, 1), placemark("b", 1.0001, 1), placemark("c", 5, 5)
	clusters := []model.Cluster{
		{ID: uuid.New(), Center: a.Coordinates, RadiusMeters: 100, Members: []model.Placemark{a, b}, Representative: a},
		{ID: uuid.New(), Center: c.Coordinates, RadiusMeters: 100, Members: []model.Placemark{c}, Representative: c},
	}
	doc, err := KML([]model.Placemark{a, b, c}, clusters, Options{})
	require.NoError(t, err)

	tree := decodeKML(t, doc)
	assert.Equal(t, DefaultTitle, tree.Document.Name)
	require.Len(t, tree.Document.Folders, 1)
	field := tree.Document.Folders[0]
	assert.Empty(t, field.Placemarks)
	require.Len(t, field.Folders, 2)
	assert.Equal(t, "Cluster 1 (2 photos)", field.Folders[0].Name)
	require.Len(t, field.Folders[0].Placemarks, 3, "summary plus two members")
	assert.Equal(t, "Cluster 1", field.Folders[0].Placemarks[0].Name)
	assert.Equal(t, "b", field.Folders[0].Placemarks[2].Name)
}

func TestKML_StylesAndIDs(t *testing.T) {
	p := placemark("a", 1, 1)
	doc, err := KML([]model.Placemark{p}, nil, Options{})
	require.NoError(t, err)

	var tree struct {
		Document struct {
			Styles []struct {
				ID    string `xml:"id,attr"`
				Color string `xml:"IconStyle>color"`
			} `xml:"Style"`
			Placemarks []struct {
				ID       string `xml:"id,attr"`
				StyleURL string `xml:"styleUrl"`
			} `xml:"Folder>Placemark"`
		} `xml:"Document"`
	}
	require.NoError(t, xml.Unmarshal([]byte(doc), &tree))
	styles := map[string]string{}
	for _, s := range tree.Document.Styles {
		styles[s.ID] = s.Color
	}
	assert.Equal(t, "ff00c800", styles["quality-high"])
	assert.Equal(t, "ffff8000", styles[clusterStyleID])
	require.Len(t, tree.Document.Placemarks, 1)
	assert.Equal(t, p.ID.String(), tree.Document.Placemarks[0].ID)
	assert.Equal(t, "#quality-high", tree.Document.Placemarks[0].StyleURL)
	assert.True(t, strings.Contains(doc, `xmlns="http://www.opengis.net/kml/2.2"`))
}

func TestCSV(t *testing.T) {
	captured := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	p := placemark("x,y.jpg", 10.25, -20.5)
	p.CapturedAt = &captured

	out, err := CSV([]model.Placemark{p})
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])
	want := []string{"x,y.jpg", "10.25", "-20.5", "12.5", "High", "2048", "FC-200", "2025-06-01T08:00:00Z", "exif"}
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Fatalf("csv row mismatch (-want +got):\n%s", diff)
	}
}

func TestGeoJSON(t *testing.T) {
	a := placemark("a", 10, 20)
	b := placemark("b", 12, 18)
	out, err := GeoJSON([]model.Placemark{a, b})
	require.NoError(t, err)

	var fc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, []float64{18, 10, 20, 12}, fc.BBox)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{20, 10, 12.5}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "a", fc.Features[0].Properties["name"])
	assert.Equal(t, 2048.0, fc.Features[0].Properties["fileSize"])
	for _, key := range []string{"name", "quality", "fileSize", "camera", "date", "gpsSource"} {
		assert.Contains(t, fc.Features[1].Properties, key)
	}
}

func TestGeoJSON_Empty(t *testing.T) {
	out, err := GeoJSON(nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"features": []`)
}

func TestZoomForSpan(t *testing.T) {
	tests := []struct {
		span float64
		want int
	}{
		{20, 5}, {10.5, 5}, {10, 10}, {5, 10}, {1, 13}, {0.5, 13}, {0.1, 16}, {0, 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoomForSpan(tt.span), "span %v", tt.span)
	}
}

func TestMapConfigFor(t *testing.T) {
	cfg := MapConfigFor([]model.Placemark{placemark("a", 10, 20), placemark("b", 12, 20.5)})
	assert.Equal(t, model.Coordinates{Lat: 11, Lon: 20.25}, cfg.Center)
	assert.Equal(t, 10, cfg.Zoom)
	require.NotNil(t, cfg.Bounds)

	empty := MapConfigFor(nil)
	assert.Equal(t, model.MapConfig{Zoom: 2}, empty)
}

func TestStatistics(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	a, b, c := placemark("a", 0, 0), placemark("b", 1, 1), placemark("c", 2, 0.5)
	a.CapturedAt, c.CapturedAt = &t2, &t1

	st := Statistics([]model.Placemark{a, b, c}, make([]model.Cluster, 2))
	assert.Equal(t, 3, st.PlacemarkCount)
	assert.Equal(t, 2, st.ClusterCount)
	assert.InDelta(t, 2*1*111*111*math.Cos(1*math.Pi/180), st.CoverageAreaKm2, 1e-9)
	require.NotNil(t, st.DateRange.Start)
	require.NotNil(t, st.DateRange.End)
	assert.Equal(t, t1, *st.DateRange.Start)
	assert.Equal(t, t2, *st.DateRange.End)
}

func TestStatistics_Empty(t *testing.T) {
	st := Statistics(nil, nil)
	assert.Equal(t, model.ExportStatistics{}, st)
}

func TestBuild(t *testing.T) {
	bundle, err := Build([]model.Placemark{placemark("a", 1, 2)}, nil, Options{})
	require.NoError(t, err)
	assert.Contains(t, bundle.PrimaryDocument, "<kml")
	assert.True(t, strings.HasPrefix(bundle.AuxiliaryExports.CSV, "Name,Latitude"))
	assert.Contains(t, bundle.AuxiliaryExports.GeoJSON, "FeatureCollection")
	assert.Equal(t, 1, bundle.Statistics.PlacemarkCount)
	assert.Equal(t, 16, bundle.AuxiliaryExports.WebMapConfig.Zoom)
}

func TestLoadContextLayers(t *testing.T) {
	src := `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Gate", "description": "north gate"},
     "geometry": {"type": "Point", "coordinates": [-120.5, 45.25]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "Road"},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}}
  ]
}`
	layer, err := LoadContextLayers(strings.NewReader(src), "site")
	require.NoError(t, err)
	assert.Equal(t, "site", layer.Type)
	require.Len(t, layer.Features, 2)

	gate := layer.Features[0]
	assert.Equal(t, "Gate", gate.Name)
	assert.Equal(t, "north gate", gate.Description)
	require.NotNil(t, gate.Point)
	assert.Equal(t, model.Coordinates{Lat: 45.25, Lon: -120.5}, *gate.Point)

	poly := layer.Features[1]
	assert.Equal(t, "site 2", poly.Name)
	require.Len(t, poly.Polygon, 1)
	assert.Len(t, poly.Polygon[0], 4)
}

func TestLoadContextLayers_Invalid(t *testing.T) {
	_, err := LoadContextLayers(strings.NewReader("not json"), "site")
	assert.Error(t, err)
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = data
	}
	return out
}

func TestWriteKMZ(t *testing.T) {
	dir := t.TempDir()
	orig := []byte("pretend this is a jpeg")
	src := filepath.Join(dir, "shot.jpg")
	require.NoError(t, os.WriteFile(src, orig, 0o600))

	p := placemark("shot.jpg", 1, 2)
	p.SourcePath = src
	p.ContentHash = integrity.ContentHash(orig)
	p.Thumbnail = []byte("thumb")
	q := placemark("remote.jpg", 1.5, 2.5)

	placemarks := []model.Placemark{p, q}
	bundle, err := Build(placemarks, nil, Options{Title: "Run"})
	require.NoError(t, err)

	out := filepath.Join(dir, "run.kmz")
	require.NoError(t, WriteKMZ(out, bundle, placemarks, Manifest{Title: "Run", EvidenceRoot: "root-hash"}))

	entries := readZip(t, out)
	assert.Equal(t, bundle.PrimaryDocument, string(entries["doc.kml"]))
	assert.Equal(t, orig, entries["files/shot.jpg"])
	assert.Equal(t, []byte("thumb"), entries[thumbnailEntry(p)])
	assert.Equal(t, bundle.AuxiliaryExports.CSV, string(entries["data/placemarks.csv"]))
	assert.Contains(t, entries, "data/placemarks.geojson")
	assert.Contains(t, entries, "data/map.json")

	var m Manifest
	require.NoError(t, json.Unmarshal(entries["manifest.json"], &m))
	assert.Equal(t, "root-hash", m.EvidenceRoot)
	require.Len(t, m.Assets, 2)
	assert.Equal(t, "files/shot.jpg", m.Assets[0].File)
	assert.Equal(t, p.ContentHash, m.Assets[0].ContentHash)
	assert.Empty(t, m.Assets[1].File)
	assert.Equal(t, 2, m.Statistics.PlacemarkCount)

	assertNoTempFiles(t, dir)
}

func TestWriteKMZ_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	var placemarks []model.Placemark
	for i, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o700))
		src := filepath.Join(dir, sub, "img.jpg")
		require.NoError(t, os.WriteFile(src, []byte(sub), 0o600))
		p := placemark("img.jpg", float64(i), 0)
		p.SourcePath = src
		placemarks = append(placemarks, p)
	}
	bundle, err := Build(placemarks, nil, Options{})
	require.NoError(t, err)
	out := filepath.Join(dir, "dup.kmz")
	require.NoError(t, WriteKMZ(out, bundle, placemarks, Manifest{}))

	entries := readZip(t, out)
	assert.Equal(t, []byte("a"), entries["files/img.jpg"])
	assert.Equal(t, []byte("b"), entries["files/"+placemarks[1].ID.String()[:8]+"-img.jpg"])
}

func TestWriteKMZ_MissingOriginalLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	p := placemark("gone.jpg", 1, 2)
	p.SourcePath = filepath.Join(dir, "gone.jpg")

	bundle, err := Build([]model.Placemark{p}, nil, Options{})
	require.NoError(t, err)

	out := filepath.Join(dir, "bad.kmz")
	err = WriteKMZ(out, bundle, []model.Placemark{p}, Manifest{})
	assert.ErrorIs(t, err, ErrPackaging)
	assert.NoFileExists(t, out)
	assertNoTempFiles(t, dir)
}

func TestWriteKMZ_ChangedOriginalFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "edited.jpg")
	require.NoError(t, os.WriteFile(src, []byte("after"), 0o600))
	p := placemark("edited.jpg", 1, 2)
	p.SourcePath = src
	p.ContentHash = integrity.ContentHash([]byte("before"))

	bundle, err := Build([]model.Placemark{p}, nil, Options{})
	require.NoError(t, err)
	out := filepath.Join(dir, "edited.kmz")
	err = WriteKMZ(out, bundle, []model.Placemark{p}, Manifest{})
	assert.ErrorIs(t, err, ErrPackaging)
	assert.Contains(t, err.Error(), "changed since")
	assert.NoFileExists(t, out)
}

func TestWriteKMZ_MissingDirectory(t *testing.T) {
	err := WriteKMZ(filepath.Join(t.TempDir(), "nope", "x.kmz"), model.ExportBundle{}, nil, Manifest{})
	assert.ErrorIs(t, err, ErrPackaging)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".fieldmark-*.kmz.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
