package dataset

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// seriesRow is one aggregated sample in the columnar output.
type seriesRow struct {
	Variable string  `parquet:"variable,dict"`
	Time     int64   `parquet:"time,timestamp(millisecond)"`
	Value    float64 `parquet:"value"`
}

// EncodeParquet serializes a spatially reduced dataset (variables over time
// only) as a parquet table with one row per variable and time step.
func EncodeParquet(ds *Dataset) ([]byte, error) {
	var rows []seriesRow
	for _, name := range ds.Variables() {
		v := ds.Var(name)
		if len(v.Dims) != 1 || v.Dims[0] != "time" {
			return nil, fmt.Errorf("variable %s still has spatial dimensions %v", name, v.Dims)
		}
		for i, ts := range ds.Time {
			rows = append(rows, seriesRow{
				Variable: name,
				Time:     ts.UnixMilli(),
				Value:    float64(v.Data[i]),
			})
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset has no series to encode")
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[seriesRow](&buf)
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
