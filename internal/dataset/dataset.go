// Package dataset holds the in-memory model for gridded Daymet subsets and
// the codecs that read and write them.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrEmpty is returned when an operation would produce a dataset with no
// inputs.
var ErrEmpty = errors.New("no datasets to combine")

// Variable is one data variable, stored row-major over its dimensions.
type Variable struct {
	Dims  []string
	Attrs map[string]string
	Data  []float32
}

// Dataset is a gridded subset: a time axis, projected y/x coordinates and a
// set of variables. Variable insertion order is preserved so encoded output
// is deterministic.
type Dataset struct {
	Time  []time.Time
	Y     []float64
	X     []float64
	Attrs map[string]string

	YAttrs map[string]string
	XAttrs map[string]string

	vars  map[string]*Variable
	names []string
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{vars: make(map[string]*Variable)}
}

// AddVariable registers a variable. Re-adding an existing name replaces its
// payload but keeps its position.
func (d *Dataset) AddVariable(name string, v *Variable) {
	if _, ok := d.vars[name]; !ok {
		d.names = append(d.names, name)
	}
	d.vars[name] = v
}

// Var returns the named variable, or nil.
func (d *Dataset) Var(name string) *Variable {
	return d.vars[name]
}

// Variables returns variable names in insertion order.
func (d *Dataset) Variables() []string {
	return append([]string(nil), d.names...)
}

// TimeExtent returns the first and last timestamp of the time axis.
func (d *Dataset) TimeExtent() (time.Time, time.Time) {
	if len(d.Time) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Time[0], d.Time[len(d.Time)-1]
}

// gridSize returns the number of cells per time step for a variable with a
// leading time dimension.
func (d *Dataset) gridSize(v *Variable) int {
	if len(d.Time) == 0 {
		return 0
	}
	return len(v.Data) / len(d.Time)
}

// hasTimeDim reports whether the variable's leading dimension is time.
func hasTimeDim(v *Variable) bool {
	return len(v.Dims) > 0 && v.Dims[0] == "time"
}

// Concat concatenates datasets along the time axis and sorts the result by
// the time coordinate. All inputs must share the same variable set and grid
// shape. The sort is stable, so feeding the same inputs in any permutation
// yields an identical result.
func Concat(datasets []*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, ErrEmpty
	}

	first := datasets[0]
	out := New()
	out.Y = append(out.Y, first.Y...)
	out.X = append(out.X, first.X...)
	out.Attrs = first.Attrs
	out.YAttrs = first.YAttrs
	out.XAttrs = first.XAttrs

	for _, ds := range datasets {
		if len(ds.Y) != len(first.Y) || len(ds.X) != len(first.X) {
			return nil, fmt.Errorf("grid shape mismatch: %dx%d vs %dx%d",
				len(ds.Y), len(ds.X), len(first.Y), len(first.X))
		}
		out.Time = append(out.Time, ds.Time...)

		for _, name := range first.names {
			src := ds.Var(name)
			if src == nil {
				return nil, fmt.Errorf("variable %q missing from one input", name)
			}
			dst := out.Var(name)
			if dst == nil {
				dst = &Variable{Dims: src.Dims, Attrs: src.Attrs}
				out.AddVariable(name, dst)
			}
			if hasTimeDim(src) {
				dst.Data = append(dst.Data, src.Data...)
			} else if len(dst.Data) == 0 {
				// Time-invariant variables (e.g. lat/lon grids) are taken
				// from the first input.
				dst.Data = append(dst.Data, src.Data...)
			}
		}
	}

	out.sortByTime()
	return out, nil
}

// MergeVars merges datasets with disjoint variable sets into one. All inputs
// must share an identical time axis and grid.
func MergeVars(datasets []*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, ErrEmpty
	}

	first := datasets[0]
	out := New()
	out.Time = append(out.Time, first.Time...)
	out.Y = append(out.Y, first.Y...)
	out.X = append(out.X, first.X...)
	out.Attrs = first.Attrs
	out.YAttrs = first.YAttrs
	out.XAttrs = first.XAttrs

	for _, ds := range datasets {
		if len(ds.Time) != len(first.Time) {
			return nil, fmt.Errorf("time axis length mismatch: %d vs %d", len(ds.Time), len(first.Time))
		}
		for i, ts := range ds.Time {
			if !ts.Equal(first.Time[i]) {
				return nil, fmt.Errorf("time axis mismatch at index %d: %v vs %v", i, ts, first.Time[i])
			}
		}
		for _, name := range ds.names {
			if out.Var(name) != nil {
				return nil, fmt.Errorf("variable %q present in more than one input", name)
			}
			out.AddVariable(name, ds.Var(name))
		}
	}
	return out, nil
}

// sortByTime reorders the time axis ascending and permutes every variable
// with a leading time dimension accordingly.
func (d *Dataset) sortByTime() {
	n := len(d.Time)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return d.Time[idx[a]].Before(d.Time[idx[b]])
	})

	sortedTime := make([]time.Time, n)
	for i, j := range idx {
		sortedTime[i] = d.Time[j]
	}
	d.Time = sortedTime

	for _, name := range d.names {
		v := d.vars[name]
		if !hasTimeDim(v) || n == 0 {
			continue
		}
		step := len(v.Data) / n
		sorted := make([]float32, len(v.Data))
		for i, j := range idx {
			copy(sorted[i*step:(i+1)*step], v.Data[j*step:(j+1)*step])
		}
		v.Data = sorted
	}
}

// MaskOutside sets cells whose center is rejected by keep to NaN, across all
// time steps of every (time, y, x) variable.
func (d *Dataset) MaskOutside(keep func(x, y float64) bool) {
	ny, nx := len(d.Y), len(d.X)
	if ny == 0 || nx == 0 {
		return
	}

	masked := make([]bool, ny*nx)
	for iy, y := range d.Y {
		for ix, x := range d.X {
			masked[iy*nx+ix] = !keep(x, y)
		}
	}

	nan := float32(math.NaN())
	for _, name := range d.names {
		v := d.vars[name]
		if len(v.Dims) != 3 || v.Dims[0] != "time" {
			continue
		}
		grid := ny * nx
		for t := 0; t < len(d.Time); t++ {
			base := t * grid
			for c, m := range masked {
				if m {
					v.Data[base+c] = nan
				}
			}
		}
	}
}

// ScaleCoords multiplies the y/x coordinate values by factor. Daymet grids
// store projected coordinates in kilometers; clipping needs meters.
func (d *Dataset) ScaleCoords(factor float64) {
	for i := range d.Y {
		d.Y[i] *= factor
	}
	for i := range d.X {
		d.X[i] *= factor
	}
}
