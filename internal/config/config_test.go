package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDownload_GeoFileVariant(t *testing.T) {
	path := writeConfig(t, `
geo:
  file: ./data/basins.geojson
  idCol: gauge_id
  ids:
    - "7080495"
    - "7030392"
variable: prcp
timeFrame:
  startTime: "2000-01-01T12:00:00"
  endTime: "2010-12-31T12:00:00"
outputDir: ./out
singleFileStorage: true
version: v4
readTimeout: 120
`)

	cfg, err := LoadDownload(path)
	require.NoError(t, err)

	assert.Equal(t, SourceGeoFile, cfg.Source.Kind)
	assert.Equal(t, "./data/basins.geojson", cfg.Source.GeoFile)
	assert.Equal(t, "gauge_id", cfg.Source.IDColumn)
	assert.Equal(t, []string{"7080495", "7030392"}, cfg.Source.IDs)
	assert.Equal(t, "prcp", cfg.Variable)
	assert.Equal(t, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, time.Date(2010, 12, 31, 12, 0, 0, 0, time.UTC), cfg.End)
	assert.True(t, cfg.SingleFileStorage)
	assert.Equal(t, "v4", cfg.Version)
	assert.Equal(t, 120*time.Second, cfg.ReadTimeout)
}

func TestLoadDownload_GeoFileWithoutIDs(t *testing.T) {
	path := writeConfig(t, `
geo:
  file: ./data/basins.geojson
  idCol: gauge_id
variable: tmax
timeFrame:
  startTime: "2005-01-01T12:00:00"
  endTime: "2005-12-31T12:00:00"
outputDir: ./out
singleFileStorage: false
version: v3
readTimeout: 60
`)

	cfg, err := LoadDownload(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Source.IDs)
}

func TestLoadDownload_BBoxVariant(t *testing.T) {
	path := writeConfig(t, `
bbox: [-80.5, 35.0, -79.25, 36.5]
name: test-region
variable: prcp
timeFrame:
  startTime: "2019-01-01T12:00:00Z"
  endTime: "2019-06-30T12:00:00Z"
outputDir: ./out
singleFileStorage: false
version: v4
readTimeout: 30
`)

	cfg, err := LoadDownload(path)
	require.NoError(t, err)

	assert.Equal(t, SourceBBox, cfg.Source.Kind)
	assert.Equal(t, [4]float64{-80.5, 35.0, -79.25, 36.5}, cfg.Source.BBox)
	assert.Equal(t, "test-region", cfg.Source.Name)
}

func TestLoadDownload_NoSourceVariant(t *testing.T) {
	path := writeConfig(t, `
variable: prcp
timeFrame:
  startTime: "2019-01-01T12:00:00"
  endTime: "2019-06-30T12:00:00"
outputDir: ./out
singleFileStorage: false
version: v4
readTimeout: 30
`)

	_, err := LoadDownload(path)
	assert.ErrorIs(t, err, ErrConfigParse)
}

func TestLoadDownload_MissingKeys(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantKey string
	}{
		{
			name: "variable",
			doc: `
bbox: [0, 0, 1, 1]
name: r
timeFrame: {startTime: "2019-01-01T12:00:00", endTime: "2019-06-30T12:00:00"}
outputDir: ./out
singleFileStorage: false
version: v4
readTimeout: 30
`,
			wantKey: "variable",
		},
		{
			name: "readTimeout",
			doc: `
bbox: [0, 0, 1, 1]
name: r
variable: prcp
timeFrame: {startTime: "2019-01-01T12:00:00", endTime: "2019-06-30T12:00:00"}
outputDir: ./out
singleFileStorage: false
version: v4
`,
			wantKey: "readTimeout",
		},
		{
			name: "geo.idCol",
			doc: `
geo: {file: ./basins.geojson}
variable: prcp
timeFrame: {startTime: "2019-01-01T12:00:00", endTime: "2019-06-30T12:00:00"}
outputDir: ./out
singleFileStorage: false
version: v4
readTimeout: 30
`,
			wantKey: "geo.idCol",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDownload(writeConfig(t, tc.doc))
			var missing *MissingKeyError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tc.wantKey, missing.Key)
		})
	}
}

func TestLoadDownload_MalformedTimestamp(t *testing.T) {
	path := writeConfig(t, `
bbox: [0, 0, 1, 1]
name: r
variable: prcp
timeFrame:
  startTime: "01.01.2019 12:00"
  endTime: "2019-06-30T12:00:00"
outputDir: ./out
singleFileStorage: false
version: v4
readTimeout: 30
`)

	_, err := LoadDownload(path)
	var invalid *InvalidTimeError
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "01.01.2019 12:00", invalid.Value)
}

func TestLoadDownload_MalformedDocument(t *testing.T) {
	path := writeConfig(t, "variable: [unclosed")
	_, err := LoadDownload(path)
	assert.ErrorIs(t, err, ErrConfigParse)
}

func TestLoadProcessing(t *testing.T) {
	path := writeConfig(t, `
dataDir: ./data
outputDir: ./out
version: v4
outputFormat: zarr
ids:
  - "123"
operationParameters:
  variables: [prcp, tmax]
  aggregationMode: mean
`)

	cfg, err := LoadProcessing(path)
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "zarr", cfg.OutputFormat)
	assert.Equal(t, []string{"123"}, cfg.IDs)
	assert.Equal(t, []string{"prcp", "tmax"}, cfg.Params.Variables)
	assert.Equal(t, "mean", cfg.Params.AggregationMode)
}

func TestLoadProcessing_MissingDataDir(t *testing.T) {
	path := writeConfig(t, `
outputDir: ./out
version: v4
outputFormat: netcdf
`)

	_, err := LoadProcessing(path)
	var missing *MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "dataDir", missing.Key)
}

func TestParseTime_OffsetAccepted(t *testing.T) {
	ts, err := ParseTime("2020-05-01T00:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 4, 30, 22, 0, 0, 0, time.UTC), ts.UTC())
}
