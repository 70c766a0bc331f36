package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/hydroclim/daymet-pipeline/internal/config"
	"github.com/hydroclim/daymet-pipeline/internal/dataset"
	"github.com/hydroclim/daymet-pipeline/internal/geo"
)

// basinIDWidth is the canonical gauge-id width; ids that come in shorter
// have lost their leading zero and get it back before geometry lookup.
const basinIDWidth = 8

const clipPostfix = "_clipped"

// Clip masks every combined artifact to its basin polygon. Cells outside the
// geometry become NaN; the grid itself is not shrunk.
func (p *Processor) Clip(ctx context.Context) error {
	if p.cfg.Params.GeomPath == "" {
		return &config.MissingKeyError{Key: "operationParameters.geomPath"}
	}
	if p.cfg.Params.IDColumn == "" {
		return &config.MissingKeyError{Key: "operationParameters.idCol"}
	}

	features, err := geo.Resolve(p.cfg.Params.GeomPath, p.cfg.Params.IDColumn, nil)
	if err != nil {
		return err
	}
	geometries := make(map[string]orb.Geometry, len(features))
	order := make([]string, 0, len(features))
	for _, f := range features {
		id := padBasinID(f.Key)
		geometries[id] = f.Geometry
		order = append(order, id)
	}

	ids := order
	if p.cfg.IDs != nil {
		ids = make([]string, len(p.cfg.IDs))
		for i, id := range p.cfg.IDs {
			ids[i] = padBasinID(id)
		}
	}

	postfix := ""
	if p.cfg.DataDir == p.cfg.OutputDir {
		postfix = clipPostfix
	}

	clipped := 0
	for _, id := range ids {
		geom, ok := geometries[id]
		if !ok {
			p.log.Error("no geometry for basin, skipping", "id", id, "file", p.cfg.Params.GeomPath)
			continue
		}
		if err := p.clipOne(ctx, id, geom, postfix); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				p.log.Error("no combined file for basin, skipping", "id", id)
			} else {
				p.log.Error("clipping basin failed, skipping", "id", id, "error", err)
			}
			continue
		}
		clipped++
	}
	p.log.Info("clip finished", "basins", len(ids), "clipped", clipped)
	return nil
}

func (p *Processor) clipOne(ctx context.Context, id string, geom orb.Geometry, postfix string) error {
	path, err := DiscoverCombined(p.cfg.DataDir, id, p.cfg.Version)
	if err != nil {
		return err
	}
	ds, err := dataset.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	// Grid coordinates come in kilometers; the projected geometry is in
	// meters.
	ds.ScaleCoords(1000)
	setUnits(ds, "m")

	projected := geo.ProjectToGrid(geom)
	ds.MaskOutside(func(x, y float64) bool {
		return geo.Contains(projected, orb.Point{x, y})
	})

	format := normalizeFormat(p.cfg.OutputFormat, false)
	key := withPostfix(filepath.Base(path), postfix)
	if format == FormatZarr {
		key = withExt(key, ".zarr")
	}
	if err := save(ctx, p.store, key, ds, format); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ArtifactsWritten.WithLabelValues(format).Inc()
	}
	p.log.Info("stored clipped artifact", "uri", p.store.URI(key))
	return nil
}

func setUnits(ds *dataset.Dataset, unit string) {
	if ds.YAttrs == nil {
		ds.YAttrs = map[string]string{}
	}
	if ds.XAttrs == nil {
		ds.XAttrs = map[string]string{}
	}
	ds.YAttrs["units"] = unit
	ds.XAttrs["units"] = unit
}

// padBasinID restores the single leading zero that numeric gauge ids lose.
func padBasinID(id string) string {
	if len(id) < basinIDWidth {
		return "0" + id
	}
	return id
}
