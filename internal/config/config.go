// Package config loads and validates the YAML documents that drive the
// download and processing pipelines.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigParse wraps YAML syntax and document-shape errors.
var ErrConfigParse = errors.New("parse config")

// MissingKeyError reports a required configuration key that is absent.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing config key %q", e.Key)
}

// InvalidTimeError reports a timestamp that matches no accepted layout.
type InvalidTimeError struct {
	Value string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid timestamp %q (want 2006-01-02T15:04:05, optionally with offset)", e.Value)
}

// SourceKind discriminates the two download config variants.
type SourceKind int

const (
	// SourceGeoFile derives bounding boxes from features in a vector file.
	SourceGeoFile SourceKind = iota
	// SourceBBox uses one explicit bounding box under a configured name.
	SourceBBox
)

// Source is the request-source part of a download config. Exactly one variant
// is populated, selected by which discriminating key the document carries.
type Source struct {
	Kind SourceKind

	// SourceGeoFile fields.
	GeoFile  string
	IDColumn string
	IDs      []string // nil means all features in the file

	// SourceBBox fields: west, south, east, north.
	BBox [4]float64
	Name string
}

// Download holds a fully validated download configuration.
type Download struct {
	Source    Source
	Variable  string
	Start     time.Time
	End       time.Time
	OutputDir string

	// SingleFileStorage merges all per-year fetches of a feature into one
	// time-sorted artifact; when false every fetch is stored as its own
	// file.
	SingleFileStorage bool

	Version     string
	ReadTimeout time.Duration
}

// OperationParams carries the operation-specific keys of a processing config.
type OperationParams struct {
	Variables       []string `yaml:"variables"`
	GeomPath        string   `yaml:"geomPath"`
	IDColumn        string   `yaml:"idCol"`
	AggregationMode string   `yaml:"aggregationMode"`
}

// Processing holds a validated processing configuration.
type Processing struct {
	DataDir      string
	OutputDir    string
	Version      string
	OutputFormat string
	IDs          []string // nil means discover all
	Params       OperationParams
}

type rawGeo struct {
	File  string   `yaml:"file"`
	IDCol string   `yaml:"idCol"`
	IDs   []string `yaml:"ids"`
}

type rawTimeFrame struct {
	StartTime string `yaml:"startTime"`
	EndTime   string `yaml:"endTime"`
}

type rawDownload struct {
	Geo               *rawGeo       `yaml:"geo"`
	BBox              []float64     `yaml:"bbox"`
	Name              string        `yaml:"name"`
	Variable          string        `yaml:"variable"`
	TimeFrame         *rawTimeFrame `yaml:"timeFrame"`
	OutputDir         string        `yaml:"outputDir"`
	SingleFileStorage *bool         `yaml:"singleFileStorage"`
	Version           string        `yaml:"version"`
	ReadTimeout       *int          `yaml:"readTimeout"`
}

type rawProcessing struct {
	DataDir      string           `yaml:"dataDir"`
	OutputDir    string           `yaml:"outputDir"`
	Version      string           `yaml:"version"`
	OutputFormat string           `yaml:"outputFormat"`
	IDs          []string         `yaml:"ids"`
	Params       *OperationParams `yaml:"operationParameters"`
}

// LoadDownload reads and validates a download configuration document.
func LoadDownload(path string) (*Download, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawDownload
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	src, err := resolveSource(&raw)
	if err != nil {
		return nil, err
	}

	if raw.Variable == "" {
		return nil, &MissingKeyError{Key: "variable"}
	}
	if raw.TimeFrame == nil {
		return nil, &MissingKeyError{Key: "timeFrame"}
	}
	if raw.TimeFrame.StartTime == "" {
		return nil, &MissingKeyError{Key: "timeFrame.startTime"}
	}
	if raw.TimeFrame.EndTime == "" {
		return nil, &MissingKeyError{Key: "timeFrame.endTime"}
	}
	if raw.OutputDir == "" {
		return nil, &MissingKeyError{Key: "outputDir"}
	}
	if raw.SingleFileStorage == nil {
		return nil, &MissingKeyError{Key: "singleFileStorage"}
	}
	if raw.Version == "" {
		return nil, &MissingKeyError{Key: "version"}
	}
	if raw.ReadTimeout == nil {
		return nil, &MissingKeyError{Key: "readTimeout"}
	}

	start, err := ParseTime(raw.TimeFrame.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTime(raw.TimeFrame.EndTime)
	if err != nil {
		return nil, err
	}

	return &Download{
		Source:            src,
		Variable:          raw.Variable,
		Start:             start,
		End:               end,
		OutputDir:         raw.OutputDir,
		SingleFileStorage: *raw.SingleFileStorage,
		Version:           raw.Version,
		ReadTimeout:       time.Duration(*raw.ReadTimeout) * time.Second,
	}, nil
}

func resolveSource(raw *rawDownload) (Source, error) {
	switch {
	case len(raw.BBox) > 0:
		if len(raw.BBox) != 4 {
			return Source{}, fmt.Errorf("%w: bbox needs 4 values (west, south, east, north), got %d",
				ErrConfigParse, len(raw.BBox))
		}
		if raw.Name == "" {
			return Source{}, &MissingKeyError{Key: "name"}
		}
		var bbox [4]float64
		copy(bbox[:], raw.BBox)
		return Source{Kind: SourceBBox, BBox: bbox, Name: raw.Name}, nil

	case raw.Geo != nil:
		if raw.Geo.File == "" {
			return Source{}, &MissingKeyError{Key: "geo.file"}
		}
		if raw.Geo.IDCol == "" {
			return Source{}, &MissingKeyError{Key: "geo.idCol"}
		}
		return Source{
			Kind:     SourceGeoFile,
			GeoFile:  raw.Geo.File,
			IDColumn: raw.Geo.IDCol,
			IDs:      raw.Geo.IDs,
		}, nil

	default:
		return Source{}, fmt.Errorf("%w: config must contain one of 'geo' or 'bbox'", ErrConfigParse)
	}
}

// LoadProcessing reads and validates a processing configuration document.
func LoadProcessing(path string) (*Processing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawProcessing
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	if raw.DataDir == "" {
		return nil, &MissingKeyError{Key: "dataDir"}
	}
	if raw.OutputDir == "" {
		return nil, &MissingKeyError{Key: "outputDir"}
	}
	if raw.Version == "" {
		return nil, &MissingKeyError{Key: "version"}
	}
	if raw.OutputFormat == "" {
		return nil, &MissingKeyError{Key: "outputFormat"}
	}

	cfg := &Processing{
		DataDir:      raw.DataDir,
		OutputDir:    raw.OutputDir,
		Version:      raw.Version,
		OutputFormat: raw.OutputFormat,
		IDs:          raw.IDs,
	}
	if raw.Params != nil {
		cfg.Params = *raw.Params
	}
	return cfg, nil
}

// timeLayouts are the accepted timestamp layouts. Bare timestamps are
// interpreted as UTC; an explicit offset is accepted as written.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// ParseTime parses a config timestamp.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &InvalidTimeError{Value: value}
}
