// Package storage abstracts where pipeline artifacts are written: a local
// directory or an object-store bucket.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store writes artifact payloads under slash-separated keys relative to the
// configured output root.
type Store interface {
	// Write stores data under key, creating intermediate directories as
	// needed.
	Write(ctx context.Context, key string, data []byte) error

	// Exists reports whether an artifact is already present under key.
	Exists(ctx context.Context, key string) (bool, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path.
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Manifest describes one merged artifact, for validation and manual retry.
type Manifest struct {
	Key       string       `json:"key"`
	Variable  string       `json:"variable,omitempty"`
	Version   string       `json:"version"`
	Files     int          `json:"files"`
	TimeStart time.Time    `json:"time_start"`
	TimeEnd   time.Time    `json:"time_end"`
	Producer  ProducerInfo `json:"producer"`
	CreatedAt time.Time    `json:"created_at"`
}

// ProducerInfo describes the software that produced the artifact.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Encode returns the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// WriteManifest stores a manifest next to the artifact it describes.
func WriteManifest(ctx context.Context, s Store, artifactKey string, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.Write(ctx, artifactKey+".manifest.json", data)
}

// NewStore creates a storage backend for the given output location. Locations
// with a gs:// or s3:// scheme go to the corresponding bucket; anything else
// is treated as a local directory.
func NewStore(ctx context.Context, output string) (Store, error) {
	switch {
	case strings.HasPrefix(output, "gs://"), strings.HasPrefix(output, "s3://"):
		return NewBlobStore(ctx, output)
	default:
		return NewLocalStore(output)
	}
}
