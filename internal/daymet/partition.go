package daymet

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeRange is returned when a download window ends before it
// starts. This is a configuration error and aborts the run.
var ErrInvalidTimeRange = errors.New("invalid time range")

// boundaryHour is the hour used for synthesized year boundaries. The fixed
// mid-day timestamp avoids day-boundary ambiguity with the subset service.
const boundaryHour = 12

// Partition splits the window [start, end] into per-year requests, one per
// calendar year touched by the window. The remote service only serves one
// year per request.
//
// A window inside a single calendar year yields exactly one request with the
// original bounds. A multi-year window yields a leading request ending at
// Dec 31 12:00, one full-year request per intervening year, and a trailing
// request starting at Jan 1 12:00. Output is ordered ascending by year.
func Partition(start, end time.Time, variable, key string, west, south, east, north float64) ([]Request, error) {
	span := end.Year() - start.Year()
	if span < 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTimeRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	req := func(year int, windowStart, windowEnd time.Time) Request {
		return Request{
			Year:     year,
			Variable: variable,
			Key:      key,
			West:     west,
			South:    south,
			East:     east,
			North:    north,
			Start:    windowStart,
			End:      windowEnd,
		}
	}

	if span == 0 {
		return []Request{req(start.Year(), start, end)}, nil
	}

	requests := make([]Request, 0, span+1)
	requests = append(requests, req(start.Year(), start, yearEnd(start.Year())))
	for year := start.Year() + 1; year < end.Year(); year++ {
		requests = append(requests, req(year, yearStart(year), yearEnd(year)))
	}
	requests = append(requests, req(end.Year(), yearStart(end.Year()), end))
	return requests, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, boundaryHour, 0, 0, 0, time.UTC)
}

func yearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, boundaryHour, 0, 0, 0, time.UTC)
}
