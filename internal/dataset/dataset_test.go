package dataset

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yearSlice builds a single-variable dataset covering the given days.
func yearSlice(variable string, days []time.Time, fill float32) *Dataset {
	ds := New()
	ds.Time = days
	ds.Y = []float64{0, 1}
	ds.X = []float64{0, 1, 2}

	data := make([]float32, len(days)*2*3)
	for i := range data {
		data[i] = fill + float32(i)
	}
	ds.AddVariable(variable, &Variable{
		Dims:  []string{"time", "y", "x"},
		Attrs: map[string]string{"units": "mm/day"},
		Data:  data,
	})
	return ds
}

func days(year int, count int) []time.Time {
	out := make([]time.Time, count)
	for i := range out {
		out[i] = time.Date(year, 1, 1+i, 12, 0, 0, 0, time.UTC)
	}
	return out
}

func TestConcat_SortsByTime(t *testing.T) {
	d2001 := yearSlice("prcp", days(2001, 2), 100)
	d2000 := yearSlice("prcp", days(2000, 2), 0)

	// Inputs deliberately out of order.
	merged, err := Concat([]*Dataset{d2001, d2000})
	require.NoError(t, err)

	require.Len(t, merged.Time, 4)
	for i := 1; i < len(merged.Time); i++ {
		assert.True(t, merged.Time[i-1].Before(merged.Time[i]), "time axis not ascending at %d", i)
	}

	// The first time slice must carry the 2000 data.
	v := merged.Var("prcp")
	require.NotNil(t, v)
	assert.Equal(t, float32(0), v.Data[0])
	assert.Equal(t, float32(100), v.Data[2*2*3])
}

func TestConcat_PermutationYieldsIdenticalArtifact(t *testing.T) {
	a := yearSlice("prcp", days(2000, 3), 0)
	b := yearSlice("prcp", days(2001, 3), 50)
	c := yearSlice("prcp", days(2002, 3), 90)

	first, err := Concat([]*Dataset{a, b, c})
	require.NoError(t, err)
	second, err := Concat([]*Dataset{yearSlice("prcp", days(2002, 3), 90),
		yearSlice("prcp", days(2000, 3), 0), yearSlice("prcp", days(2001, 3), 50)})
	require.NoError(t, err)

	enc1, err := EncodeNetCDF(first)
	require.NoError(t, err)
	enc2, err := EncodeNetCDF(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(enc1, enc2), "merged artifacts differ across input permutations")
}

func TestConcat_Empty(t *testing.T) {
	_, err := Concat(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestConcat_GridMismatch(t *testing.T) {
	a := yearSlice("prcp", days(2000, 1), 0)
	b := yearSlice("prcp", days(2001, 1), 0)
	b.X = []float64{0, 1}
	b.Var("prcp").Data = b.Var("prcp").Data[:4]

	_, err := Concat([]*Dataset{a, b})
	assert.Error(t, err)
}

func TestMergeVars(t *testing.T) {
	prcp := yearSlice("prcp", days(2000, 2), 0)
	tmax := yearSlice("tmax", days(2000, 2), 10)

	merged, err := MergeVars([]*Dataset{prcp, tmax})
	require.NoError(t, err)
	assert.Equal(t, []string{"prcp", "tmax"}, merged.Variables())
}

func TestMergeVars_TimeAxisMismatch(t *testing.T) {
	prcp := yearSlice("prcp", days(2000, 2), 0)
	tmax := yearSlice("tmax", days(2001, 2), 10)

	_, err := MergeVars([]*Dataset{prcp, tmax})
	assert.Error(t, err)
}

func TestTimeExtent(t *testing.T) {
	ds := yearSlice("prcp", days(2000, 5), 0)
	first, last := ds.TimeExtent()
	assert.Equal(t, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2000, 1, 5, 12, 0, 0, 0, time.UTC), last)
}

func TestMaskOutside(t *testing.T) {
	ds := yearSlice("prcp", days(2000, 2), 0)

	// Keep only cells with x >= 1.
	ds.MaskOutside(func(x, y float64) bool { return x >= 1 })

	v := ds.Var("prcp")
	for ti := 0; ti < 2; ti++ {
		for yi := 0; yi < 2; yi++ {
			base := ti*6 + yi*3
			assert.True(t, math.IsNaN(float64(v.Data[base])), "cell x=0 not masked")
			assert.False(t, math.IsNaN(float64(v.Data[base+1])), "cell x=1 wrongly masked")
			assert.False(t, math.IsNaN(float64(v.Data[base+2])), "cell x=2 wrongly masked")
		}
	}
}

func TestScaleCoords(t *testing.T) {
	ds := yearSlice("prcp", days(2000, 1), 0)
	ds.Y = []float64{1.5, 2}
	ds.X = []float64{-3, 4, 5}

	ds.ScaleCoords(1000)
	assert.Equal(t, []float64{1500, 2000}, ds.Y)
	assert.Equal(t, []float64{-3000, 4000, 5000}, ds.X)
}

func TestEncodeNetCDF_RoundTrip(t *testing.T) {
	src := yearSlice("prcp", days(2000, 3), 7)
	src.Attrs = map[string]string{"source": "test"}

	encoded, err := EncodeNetCDF(src)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.Time, 3)
	assert.Equal(t, src.Time[0], decoded.Time[0])
	assert.Equal(t, src.Time[2], decoded.Time[2])
	assert.Equal(t, src.Y, decoded.Y)
	assert.Equal(t, src.X, decoded.X)

	v := decoded.Var("prcp")
	require.NotNil(t, v)
	assert.Equal(t, src.Var("prcp").Data, v.Data)
	assert.Equal(t, "mm/day", v.Attrs["units"])
}
