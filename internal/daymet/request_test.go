package daymet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequest_FileName(t *testing.T) {
	r := Request{Year: 2000, Variable: "prcp"}

	assert.Equal(t, "daymet_v4_daily_na_prcp_2000.nc", r.FileName(V4))
	assert.Equal(t, "daymet_v3_prcp_2000_na.nc4", r.FileName(V3))
	// Unknown versions fall back to v4.
	assert.Equal(t, "daymet_v4_daily_na_prcp_2000.nc", r.FileName("v5"))
}

func TestRequest_URL(t *testing.T) {
	r := Request{Year: 2000, Variable: "prcp"}

	assert.Equal(t,
		"https://thredds.daac.ornl.gov/thredds/ncss/ornldaac/1840/daymet_v4_daily_na_prcp_2000.nc",
		r.URL(V4))
	assert.Equal(t,
		"https://thredds.daac.ornl.gov/thredds/ncss/ornldaac/1328/2000/daymet_v3_prcp_2000_na.nc4",
		r.URL(V3))
}

func TestRequest_Query(t *testing.T) {
	r := Request{
		Year:     2015,
		Variable: "tmax",
		Key:      "basin",
		West:     -90.25,
		South:    40,
		East:     -89.5,
		North:    41,
		Start:    time.Date(2015, 1, 1, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2015, 12, 31, 12, 0, 0, 0, time.UTC),
	}

	q := r.Query()
	assert.Equal(t, "tmax", q.Get("var"))
	assert.Equal(t, "41", q.Get("north"))
	assert.Equal(t, "-90.25", q.Get("west"))
	assert.Equal(t, "-89.5", q.Get("east"))
	assert.Equal(t, "40", q.Get("south"))
	assert.Equal(t, "1", q.Get("horizStride"))
	assert.Equal(t, "1", q.Get("timeStride"))
	assert.Equal(t, "2015-01-01T12:00:00Z", q.Get("time_start"))
	assert.Equal(t, "2015-12-31T12:00:00Z", q.Get("time_end"))
	assert.Equal(t, "netcdf4", q.Get("accept"))
}

func TestMergedFileName(t *testing.T) {
	assert.Equal(t, "7080495_daymet_v4_daily_na_prcp.nc", MergedFileName("7080495", "prcp", V4))
	assert.Equal(t, "7080495_daymet_v3_prcp_na.nc4", MergedFileName("7080495", "prcp", V3))
}

func TestCombinedFileName(t *testing.T) {
	assert.Equal(t, "123_daymet_v3_na.nc4", CombinedFileName("123", V3, "netcdf"))
	assert.Equal(t, "123_daymet_v4_daily_na.nc", CombinedFileName("123", V4, "netcdf"))
	assert.Equal(t, "123_daymet_v4_na.zarr", CombinedFileName("123", V4, "zarr"))
	assert.Equal(t, "123_daymet_v3_na.zarr", CombinedFileName("123", V3, "zarr"))
}
