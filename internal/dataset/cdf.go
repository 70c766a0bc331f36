package dataset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// NetCDF classic (CDF-1) constants.
const (
	ncDimension = 0x0A
	ncVariable  = 0x0B
	ncAttribute = 0x0C

	ncChar   = 2
	ncFloat  = 5
	ncDouble = 6
)

// timeEpoch is the reference the time axis is encoded against, matching the
// units carried by upstream Daymet files.
var timeEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const timeUnits = "days since 1980-01-01 00:00:00"

// cdfVar is one variable staged for encoding.
type cdfVar struct {
	name    string
	dims    []string
	attrs   map[string]string
	ncType  uint32
	float32 []float32
	float64 []float64
}

func (v *cdfVar) elemCount() int {
	if v.ncType == ncDouble {
		return len(v.float64)
	}
	return len(v.float32)
}

func (v *cdfVar) dataSize() int {
	if v.ncType == ncDouble {
		return len(v.float64) * 8
	}
	return len(v.float32) * 4
}

// EncodeNetCDF serializes the dataset into the NetCDF classic container.
// Coordinates are written as doubles, data variables as floats; the time
// axis is encoded against the fixed Daymet epoch. Output is deterministic
// for a given dataset.
func EncodeNetCDF(ds *Dataset) ([]byte, error) {
	if len(ds.Time) == 0 {
		return nil, fmt.Errorf("cannot encode dataset without a time axis")
	}

	dims, dimIDs, dimSizes := collectDims(ds)
	vars, err := collectVars(ds)
	if err != nil {
		return nil, err
	}

	// Header size pass, so data offsets can be assigned up front.
	headerSize := 4 + 4 // magic + numrecs
	headerSize += dimListSize(dims)
	headerSize += attrListSize(ds.Attrs)
	headerSize += 8 // var_list tag + count
	for _, v := range vars {
		headerSize += varEntrySize(v)
	}

	begins := make([]int, len(vars))
	offset := headerSize
	for i, v := range vars {
		begins[i] = offset
		offset += pad4len(v.dataSize())
	}

	var buf bytes.Buffer
	buf.WriteString("CDF\x01")
	writeU32(&buf, 0) // numrecs; all dimensions are fixed

	writeDimList(&buf, dims, dimSizes)
	writeAttrList(&buf, ds.Attrs)

	writeU32(&buf, ncVariable)
	writeU32(&buf, uint32(len(vars)))
	for i, v := range vars {
		writeName(&buf, v.name)
		writeU32(&buf, uint32(len(v.dims)))
		for _, d := range v.dims {
			writeU32(&buf, uint32(dimIDs[d]))
		}
		writeAttrList(&buf, v.attrs)
		writeU32(&buf, v.ncType)
		writeU32(&buf, uint32(pad4len(v.dataSize())))
		writeU32(&buf, uint32(begins[i]))
	}

	for _, v := range vars {
		if v.ncType == ncDouble {
			for _, f := range v.float64 {
				writeU64(&buf, math.Float64bits(f))
			}
		} else {
			for _, f := range v.float32 {
				writeU32(&buf, math.Float32bits(f))
			}
		}
		writePad(&buf, v.dataSize())
	}

	return buf.Bytes(), nil
}

func collectDims(ds *Dataset) (names []string, ids map[string]int, sizes map[string]int) {
	ids = make(map[string]int)
	sizes = make(map[string]int)

	add := func(name string, size int) {
		ids[name] = len(names)
		sizes[name] = size
		names = append(names, name)
	}
	add("time", len(ds.Time))
	if len(ds.Y) > 0 {
		add("y", len(ds.Y))
	}
	if len(ds.X) > 0 {
		add("x", len(ds.X))
	}
	return names, ids, sizes
}

func collectVars(ds *Dataset) ([]*cdfVar, error) {
	timeVals := make([]float64, len(ds.Time))
	for i, ts := range ds.Time {
		timeVals[i] = ts.Sub(timeEpoch).Hours() / 24
	}

	vars := []*cdfVar{{
		name:    "time",
		dims:    []string{"time"},
		attrs:   map[string]string{"units": timeUnits, "calendar": "standard"},
		ncType:  ncDouble,
		float64: timeVals,
	}}

	if len(ds.Y) > 0 {
		vars = append(vars, &cdfVar{
			name: "y", dims: []string{"y"}, attrs: ds.YAttrs,
			ncType: ncDouble, float64: ds.Y,
		})
	}
	if len(ds.X) > 0 {
		vars = append(vars, &cdfVar{
			name: "x", dims: []string{"x"}, attrs: ds.XAttrs,
			ncType: ncDouble, float64: ds.X,
		})
	}

	for _, name := range ds.Variables() {
		v := ds.Var(name)
		want := 1
		for _, d := range v.Dims {
			switch d {
			case "time":
				want *= len(ds.Time)
			case "y":
				want *= len(ds.Y)
			case "x":
				want *= len(ds.X)
			default:
				return nil, fmt.Errorf("variable %s has unknown dimension %q", name, d)
			}
		}
		if len(v.Data) != want {
			return nil, fmt.Errorf("variable %s has %d values, dimensions imply %d", name, len(v.Data), want)
		}
		vars = append(vars, &cdfVar{
			name: name, dims: v.Dims, attrs: v.Attrs,
			ncType: ncFloat, float32: v.Data,
		})
	}
	return vars, nil
}

func pad4len(n int) int {
	return (n + 3) &^ 3
}

func nameSize(s string) int {
	return 4 + pad4len(len(s))
}

func dimListSize(dims []string) int {
	size := 8
	for _, d := range dims {
		size += nameSize(d) + 4
	}
	return size
}

func attrListSize(attrs map[string]string) int {
	if len(attrs) == 0 {
		return 8 // ABSENT: zero tag + zero count
	}
	size := 8
	for k, v := range attrs {
		size += nameSize(k) + 4 + 4 + pad4len(len(v))
	}
	return size
}

func varEntrySize(v *cdfVar) int {
	return nameSize(v.name) + 4 + 4*len(v.dims) + attrListSize(v.attrs) + 4 + 4 + 4
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeName(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
	writePad(buf, len(s))
}

func writePad(buf *bytes.Buffer, written int) {
	for i := written; i%4 != 0; i++ {
		buf.WriteByte(0)
	}
}

func writeDimList(buf *bytes.Buffer, dims []string, sizes map[string]int) {
	writeU32(buf, ncDimension)
	writeU32(buf, uint32(len(dims)))
	for _, d := range dims {
		writeName(buf, d)
		writeU32(buf, uint32(sizes[d]))
	}
}

func writeAttrList(buf *bytes.Buffer, attrs map[string]string) {
	if len(attrs) == 0 {
		writeU32(buf, 0)
		writeU32(buf, 0)
		return
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeU32(buf, ncAttribute)
	writeU32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeName(buf, k)
		writeU32(buf, ncChar)
		writeU32(buf, uint32(len(attrs[k])))
		buf.WriteString(attrs[k])
		writePad(buf, len(attrs[k]))
	}
}
