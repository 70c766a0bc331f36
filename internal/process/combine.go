package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hydroclim/daymet-pipeline/internal/config"
	"github.com/hydroclim/daymet-pipeline/internal/dataset"
	"github.com/hydroclim/daymet-pipeline/internal/daymet"
	"github.com/hydroclim/daymet-pipeline/internal/metrics"
	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

// Processor runs one processing operation over a directory of downloaded
// files. Per-feature failures are logged and skipped; only config-level
// problems abort the batch.
type Processor struct {
	cfg     *config.Processing
	store   storage.Store
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a processor writing to store. Metrics may be nil, for tests.
func New(cfg *config.Processing, store storage.Store, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, store: store, metrics: m, log: logger}
}

// Combine merges the per-year, per-variable files of each feature into one
// multi-variable artifact spanning the whole downloaded period.
func (p *Processor) Combine(ctx context.Context) error {
	variables := p.cfg.Params.Variables
	if len(variables) == 0 {
		return &config.MissingKeyError{Key: "operationParameters.variables"}
	}

	ids := p.cfg.IDs
	if ids == nil {
		var err error
		ids, err = DiscoverIDs(p.cfg.DataDir, variables[0])
		if err != nil {
			return err
		}
	}

	combined := 0
	for _, id := range ids {
		if err := p.combineOne(ctx, id, variables); err != nil {
			p.log.Error("combining feature failed, skipping", "id", id, "error", err)
			continue
		}
		combined++
	}
	p.log.Info("combine finished", "features", len(ids), "combined", combined)
	return nil
}

func (p *Processor) combineOne(ctx context.Context, id string, variables []string) error {
	perVariable := make([]*dataset.Dataset, 0, len(variables))
	files := 0
	for _, variable := range variables {
		paths, err := DiscoverVariable(p.cfg.DataDir, id, variable, p.cfg.Version)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			p.log.Warn("no files for variable, leaving it out", "id", id, "variable", variable)
			continue
		}

		pieces := make([]*dataset.Dataset, 0, len(paths))
		for _, path := range paths {
			ds, err := dataset.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			pieces = append(pieces, ds)
		}
		series, err := dataset.Concat(pieces)
		if err != nil {
			return fmt.Errorf("concat %s files for %s: %w", variable, id, err)
		}
		perVariable = append(perVariable, series)
		files += len(paths)
	}
	if len(perVariable) == 0 {
		return fmt.Errorf("no input files for id %s", id)
	}

	merged, err := dataset.MergeVars(perVariable)
	if err != nil {
		return fmt.Errorf("merge variables for %s: %w", id, err)
	}
	p.logMetadata(id, merged, variables)

	format := normalizeFormat(p.cfg.OutputFormat, false)
	key := daymet.CombinedFileName(id, p.cfg.Version, format)
	if err := save(ctx, p.store, key, merged, format); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ArtifactsWritten.WithLabelValues(format).Inc()
	}

	first, last := merged.TimeExtent()
	manifest := &storage.Manifest{
		Key:       id,
		Version:   p.cfg.Version,
		Files:     files,
		TimeStart: first,
		TimeEnd:   last,
		Producer:  storage.ProducerInfo{Name: "daymet-pipeline"},
		CreatedAt: time.Now().UTC(),
	}
	if err := storage.WriteManifest(ctx, p.store, key, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	p.log.Info("stored combined artifact", "uri", p.store.URI(key), "files", files)
	return nil
}

// logMetadata reports the time extent per variable and calls out requested
// variables that ended up missing.
func (p *Processor) logMetadata(id string, ds *dataset.Dataset, requested []string) {
	present := make(map[string]bool)
	for _, name := range ds.Variables() {
		present[name] = true
		first, last := ds.TimeExtent()
		p.log.Debug("combined variable", "id", id, "variable", name, "from", first, "to", last)
	}
	for _, name := range requested {
		if !present[name] {
			p.log.Warn("requested variable missing from combined artifact", "id", id, "variable", name)
		}
	}
}
