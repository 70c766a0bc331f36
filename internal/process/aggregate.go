package process

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hydroclim/daymet-pipeline/internal/dataset"
)

// Supported aggregation modes.
const (
	AggMin  = "min"
	AggMax  = "max"
	AggMean = "mean"
)

// Aggregate reduces every combined artifact over its spatial dimensions,
// producing one value per variable and time step. An unknown mode is a
// config error and aborts the batch.
func (p *Processor) Aggregate(ctx context.Context) error {
	mode := p.cfg.Params.AggregationMode
	switch mode {
	case AggMin, AggMax, AggMean:
	default:
		return fmt.Errorf("unsupported aggregation mode %q", mode)
	}

	var paths []string
	if p.cfg.IDs == nil {
		var err error
		paths, err = DiscoverAllCombined(p.cfg.DataDir, p.cfg.Version)
		if err != nil {
			return err
		}
	} else {
		for _, id := range p.cfg.IDs {
			path, err := DiscoverCombined(p.cfg.DataDir, id, p.cfg.Version)
			if err != nil {
				p.log.Error("no combined file for id, skipping", "id", id)
				continue
			}
			paths = append(paths, path)
		}
	}

	postfix := ""
	if p.cfg.DataDir == p.cfg.OutputDir {
		postfix = "_" + mode
	}

	aggregated := 0
	for _, path := range paths {
		if err := p.aggregateOne(ctx, path, mode, postfix); err != nil {
			p.log.Error("aggregating file failed, skipping", "path", path, "error", err)
			continue
		}
		aggregated++
	}
	p.log.Info("aggregate finished", "mode", mode, "files", len(paths), "aggregated", aggregated)
	return nil
}

func (p *Processor) aggregateOne(ctx context.Context, path, mode, postfix string) error {
	ds, err := dataset.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	reduced, err := reduceSpatial(ds, mode)
	if err != nil {
		return err
	}

	format := normalizeFormat(p.cfg.OutputFormat, true)
	key := withPostfix(filepath.Base(path), postfix)
	switch format {
	case FormatParquet:
		key = withExt(key, ".parquet")
	case FormatZarr:
		key = withExt(key, ".zarr")
	}
	if err := save(ctx, p.store, key, reduced, format); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ArtifactsWritten.WithLabelValues(format).Inc()
	}
	p.log.Info("stored aggregated artifact", "uri", p.store.URI(key), "mode", mode)
	return nil
}

// reduceSpatial collapses every (time, y, x) variable to a per-time-step
// scalar. NaN cells (masked by clipping) are left out; a time step with no
// valid cells yields NaN.
func reduceSpatial(ds *dataset.Dataset, mode string) (*dataset.Dataset, error) {
	out := dataset.New()
	out.Time = ds.Time
	out.Attrs = ds.Attrs

	for _, name := range ds.Variables() {
		v := ds.Var(name)
		if len(v.Dims) != 3 || v.Dims[0] != "time" {
			continue
		}
		grid := len(ds.Y) * len(ds.X)
		if grid == 0 || len(v.Data) != grid*len(ds.Time) {
			return nil, fmt.Errorf("variable %s has inconsistent shape", name)
		}

		series := make([]float32, len(ds.Time))
		cells := make([]float64, 0, grid)
		for t := range ds.Time {
			cells = cells[:0]
			for _, f := range v.Data[t*grid : (t+1)*grid] {
				if !math.IsNaN(float64(f)) {
					cells = append(cells, float64(f))
				}
			}
			series[t] = float32(reduce(cells, mode))
		}
		out.AddVariable(name, &dataset.Variable{
			Dims:  []string{"time"},
			Attrs: annotate(v.Attrs, mode),
			Data:  series,
		})
	}
	if len(out.Variables()) == 0 {
		return nil, fmt.Errorf("no gridded variables to aggregate")
	}
	return out, nil
}

func reduce(cells []float64, mode string) float64 {
	if len(cells) == 0 {
		return math.NaN()
	}
	switch mode {
	case AggMin:
		return floats.Min(cells)
	case AggMax:
		return floats.Max(cells)
	default:
		return stat.Mean(cells, nil)
	}
}

func annotate(attrs map[string]string, mode string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out["cell_methods"] = "area: " + strings.ToLower(mode)
	return out
}
