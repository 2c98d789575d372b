package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/fieldmark/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FIELDMARK_LEDGER_DRIVER", "memory")
	t.Setenv("FIELDMARK_LOG_FORMAT", "text")
	t.Setenv("FIELDMARK_LOG_LEVEL", "error")
	t.Setenv("FIELDMARK_ANALYST", "cli-test")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAgentsCommand(t *testing.T) {
	out, err := execute(t, "agents")
	require.NoError(t, err)
	for _, name := range []string{"metadata_extractor", "geo_clusterer", "evidence_recorder", "geo_exporter"} {
		assert.Contains(t, out, name)
	}
}

func TestProcessCommand(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	for i, name := range []string{"a.jpg", "b.jpg"} {
		data := testutil.JPEGWithEXIF(t, 64, 48, uint64(i+20), testutil.EXIF{
			Make: "Acme", Model: "FieldCam", CapturedAt: at, HasGPS: true, Lat: 40.0 + float64(i)*0.1, Lon: -3.7,
		})
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	archive := filepath.Join(t.TempDir(), "out.kmz")

	out, err := execute(t, "process", dir, "-o", archive, "--title", "Madrid")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "Archive:")
	assert.Contains(t, out, "Evidence root:")
	assert.FileExists(t, archive)
}

func TestProcessCommand_EmptyDirFails(t *testing.T) {
	out, err := execute(t, "process", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
}

func TestRunCommand(t *testing.T) {
	_, err := execute(t, "run", "geo_clusterer", "--params", `{"placemarks":[]}`)
	require.NoError(t, err)

	_, err = execute(t, "run", "no_such_capability")
	assert.Error(t, err)

	_, err = execute(t, "run", "geo_clusterer", "--params", `not json`)
	assert.ErrorContains(t, err, "parse --params")
}

func TestVerifyCommand_EmptyLedger(t *testing.T) {
	out, err := execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "0 records verified")

	_, err = execute(t, "verify", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid record id")
}

func TestWorkflowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	wf := "name: cluster-only\nsteps:\n  - - capability: geo_clusterer\n      params:\n        placemarks: []\n"
	require.NoError(t, os.WriteFile(path, []byte(wf), 0o600))

	out, err := execute(t, "workflow", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cluster-only")
}

func TestParseGPSOverrides(t *testing.T) {
	got, err := parseGPSOverrides([]string{"a.jpg=51.5,-0.12", "b.jpg=10,20,300"})
	require.NoError(t, err)
	assert.InDelta(t, 51.5, got["a.jpg"].Lat, 1e-9)
	assert.InDelta(t, 300, got["b.jpg"].Alt, 1e-9)

	for _, bad := range []string{"a.jpg", "=1,2", "a.jpg=1", "a.jpg=x,2", "a.jpg=91,0", "a.jpg=1,2,3,4"} {
		_, err := parseGPSOverrides([]string{bad})
		assert.Error(t, err, bad)
	}

	got, err = parseGPSOverrides(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadContextLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.geojson")
	fc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"Depot"},"geometry":{"type":"Point","coordinates":[-3.7,40.4]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(fc), 0o600))

	layers, err := loadContextLayers([]string{"sites=" + path})
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "sites", layers[0].Type)
	require.Len(t, layers[0].Features, 1)
	assert.Equal(t, "Depot", layers[0].Features[0].Name)

	_, err = loadContextLayers([]string{"sites"})
	assert.Error(t, err)
	_, err = loadContextLayers([]string{"sites=" + filepath.Join(t.TempDir(), "missing.geojson")})
	assert.Error(t, err)
}

func TestNewApp_LoadsDotEnv(t *testing.T) {
	const key = "FIELDMARK_CLUSTER_RADIUS_METERS"
	t.Setenv("FIELDMARK_LEDGER_DRIVER", "memory")
	t.Setenv("FIELDMARK_LOG_LEVEL", "error")
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=250\n"), 0o600))
	t.Chdir(dir)

	app, err := newApp()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	assert.InDelta(t, 250.0, app.Config().ClusterRadiusMeters, 1e-9)
}
