// Package downloader drives a full download run: it turns a config into
// per-year subset requests, fetches them sequentially and stores the
// results.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hydroclim/daymet-pipeline/internal/config"
	"github.com/hydroclim/daymet-pipeline/internal/dataset"
	"github.com/hydroclim/daymet-pipeline/internal/daymet"
	"github.com/hydroclim/daymet-pipeline/internal/fetch"
	"github.com/hydroclim/daymet-pipeline/internal/geo"
	"github.com/hydroclim/daymet-pipeline/internal/logging"
	"github.com/hydroclim/daymet-pipeline/internal/metrics"
	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	GitSHA  = "unknown"
)

// ErrNoData marks a feature for which not a single subset request returned
// data.
var ErrNoData = errors.New("no data fetched for feature")

// Fetcher is the subset client surface the downloader depends on.
type Fetcher interface {
	// Download fetches one request and persists the raw payload, returning
	// the storage key written.
	Download(ctx context.Context, req daymet.Request, store storage.Store) (string, error)

	// Open fetches one request and decodes the payload in memory.
	Open(ctx context.Context, req daymet.Request) (*dataset.Dataset, error)
}

// Summary reports what one run did.
type Summary struct {
	RequestsAttempted int
	RequestsSucceeded int
	FeaturesMerged    int
	FeaturesSkipped   int
}

// Downloader executes one download configuration. Requests run strictly
// sequentially; individual failures are logged and skipped, never fatal.
type Downloader struct {
	cfg     *config.Download
	fetcher Fetcher
	store   storage.Store
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a downloader. Metrics may be nil, for tests.
func New(cfg *config.Download, fetcher Fetcher, store storage.Store, m *metrics.Metrics, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{cfg: cfg, fetcher: fetcher, store: store, metrics: m, log: logger}
}

// Run executes the configured download. Only config-level failures (bad
// geometry file, inverted time range) abort the batch.
func (d *Downloader) Run(ctx context.Context) (Summary, error) {
	requests, err := d.buildRequests()
	if err != nil {
		return Summary{}, err
	}
	d.log.Info("starting download run",
		"requests", len(requests),
		"variable", d.cfg.Variable,
		"version", d.cfg.Version,
		"singleFileStorage", d.cfg.SingleFileStorage)

	// singleFileStorage merges all years of a feature into one artifact;
	// when off, every fetched year is stored as its own file.
	var sum Summary
	if d.cfg.SingleFileStorage {
		sum = d.runMerged(ctx, requests)
	} else {
		sum = d.runPerRequest(ctx, requests)
	}

	d.log.Info("download run finished",
		"attempted", sum.RequestsAttempted,
		"succeeded", sum.RequestsSucceeded,
		"featuresMerged", sum.FeaturesMerged,
		"featuresSkipped", sum.FeaturesSkipped)
	return sum, nil
}

// buildRequests expands the config source into per-year requests, in feature
// order.
func (d *Downloader) buildRequests() ([]daymet.Request, error) {
	src := d.cfg.Source
	switch src.Kind {
	case config.SourceBBox:
		return daymet.Partition(d.cfg.Start, d.cfg.End, d.cfg.Variable, src.Name,
			src.BBox[0], src.BBox[1], src.BBox[2], src.BBox[3])

	case config.SourceGeoFile:
		features, err := geo.Resolve(src.GeoFile, src.IDColumn, src.IDs)
		if err != nil {
			return nil, err
		}
		var requests []daymet.Request
		for _, f := range features {
			part, err := daymet.Partition(d.cfg.Start, d.cfg.End, d.cfg.Variable, f.Key,
				f.Bound.Min[0], f.Bound.Min[1], f.Bound.Max[0], f.Bound.Max[1])
			if err != nil {
				return nil, err
			}
			requests = append(requests, part...)
		}
		return requests, nil

	default:
		return nil, fmt.Errorf("unknown source kind %d", src.Kind)
	}
}

// runPerRequest stores every fetched payload as its own file under the
// feature prefix.
func (d *Downloader) runPerRequest(ctx context.Context, requests []daymet.Request) Summary {
	var sum Summary
	for _, req := range requests {
		sum.RequestsAttempted++
		d.countAttempt(req)

		start := time.Now()
		key, err := d.fetcher.Download(ctx, req, d.store)
		if err != nil {
			d.countFailure(req, err)
			logging.RequestLogger(req.Key, req.Variable, req.Year, req.URL(d.cfg.Version)).
				Warn("request failed, skipping", "error", err)
			continue
		}
		sum.RequestsSucceeded++
		d.countSuccess(req, time.Since(start))
		d.log.Debug("request done", "key", key)
	}
	return sum
}

// runMerged fetches all years of one feature, concatenates them along the
// time axis and stores a single artifact per feature.
func (d *Downloader) runMerged(ctx context.Context, requests []daymet.Request) Summary {
	var sum Summary
	for _, group := range groupByKey(requests) {
		parts := make([]*dataset.Dataset, 0, len(group))
		for _, req := range group {
			sum.RequestsAttempted++
			d.countAttempt(req)

			start := time.Now()
			ds, err := d.fetcher.Open(ctx, req)
			if err != nil {
				d.countFailure(req, err)
				logging.RequestLogger(req.Key, req.Variable, req.Year, req.URL(d.cfg.Version)).
					Warn("request failed, skipping", "error", err)
				continue
			}
			sum.RequestsSucceeded++
			d.countSuccess(req, time.Since(start))
			parts = append(parts, ds)
		}

		key := group[0].Key
		if len(parts) == 0 {
			sum.FeaturesSkipped++
			if d.metrics != nil {
				d.metrics.FeaturesSkipped.WithLabelValues(d.cfg.Variable, d.cfg.Version).Inc()
			}
			d.log.Error("feature skipped", "key", key, "error", ErrNoData)
			continue
		}

		if err := d.storeMerged(ctx, key, parts); err != nil {
			sum.FeaturesSkipped++
			d.log.Error("storing merged artifact failed, skipping feature", "key", key, "error", err)
			continue
		}
		sum.FeaturesMerged++
		if d.metrics != nil {
			d.metrics.FeaturesMerged.WithLabelValues(d.cfg.Variable, d.cfg.Version).Inc()
		}
	}
	return sum
}

func (d *Downloader) storeMerged(ctx context.Context, key string, parts []*dataset.Dataset) error {
	merged, err := dataset.Concat(parts)
	if err != nil {
		return fmt.Errorf("merge datasets: %w", err)
	}
	encoded, err := dataset.EncodeNetCDF(merged)
	if err != nil {
		return fmt.Errorf("encode merged dataset: %w", err)
	}

	artifactKey := daymet.MergedFileName(key, d.cfg.Variable, d.cfg.Version)
	if err := d.store.Write(ctx, artifactKey, encoded); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.ArtifactsWritten.WithLabelValues("netcdf").Inc()
	}

	first, last := merged.TimeExtent()
	manifest := &storage.Manifest{
		Key:       key,
		Variable:  d.cfg.Variable,
		Version:   d.cfg.Version,
		Files:     len(parts),
		TimeStart: first,
		TimeEnd:   last,
		Producer:  storage.ProducerInfo{Name: "daymet-pipeline", Version: Version},
		CreatedAt: time.Now().UTC(),
	}
	if err := storage.WriteManifest(ctx, d.store, artifactKey, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	d.log.Info("stored merged artifact", "uri", d.store.URI(artifactKey), "years", len(parts))
	return nil
}

// groupByKey buckets requests per feature, preserving first-seen order.
func groupByKey(requests []daymet.Request) [][]daymet.Request {
	index := make(map[string]int)
	var groups [][]daymet.Request
	for _, req := range requests {
		i, ok := index[req.Key]
		if !ok {
			i = len(groups)
			index[req.Key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], req)
	}
	return groups
}

func (d *Downloader) countAttempt(req daymet.Request) {
	if d.metrics == nil {
		return
	}
	d.metrics.RequestsAttempted.WithLabelValues(req.Variable, d.cfg.Version).Inc()
}

func (d *Downloader) countSuccess(req daymet.Request, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RequestsSucceeded.WithLabelValues(req.Variable, d.cfg.Version).Inc()
	d.metrics.FetchDuration.WithLabelValues(req.Variable, d.cfg.Version).Observe(elapsed.Seconds())
}

func (d *Downloader) countFailure(req daymet.Request, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.RequestsFailed.WithLabelValues(req.Variable, d.cfg.Version, failureReason(err)).Inc()
}

func failureReason(err error) string {
	var herr *fetch.HTTPError
	var terr *fetch.TimeoutError
	switch {
	case errors.As(err, &herr):
		return "http"
	case errors.As(err, &terr):
		return "timeout"
	default:
		return "connection"
	}
}
