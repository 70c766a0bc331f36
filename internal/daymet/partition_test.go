package daymet

import (
	"errors"
	"testing"
	"time"
)

func date(year, month, day, hour int) time.Time {
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
}

func TestPartition_SingleYear(t *testing.T) {
	start := date(2005, 3, 1, 12)
	end := date(2005, 10, 15, 12)

	requests, err := Partition(start, end, "prcp", "basin-1", -80, 35, -79, 36)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	r := requests[0]
	if r.Year != 2005 {
		t.Errorf("year = %d, want 2005", r.Year)
	}
	if !r.Start.Equal(start) || !r.End.Equal(end) {
		t.Errorf("window = [%v, %v], want original bounds", r.Start, r.End)
	}
}

func TestPartition_SameDay(t *testing.T) {
	ts := date(2010, 6, 1, 12)
	requests, err := Partition(ts, ts, "tmax", "b", 0, 0, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
}

func TestPartition_MultiYear(t *testing.T) {
	start := date(2000, 1, 1, 12)
	end := date(2010, 12, 31, 12)

	requests, err := Partition(start, end, "prcp", "basin-1", -80, 35, -79, 36)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 11 {
		t.Fatalf("expected 11 requests for 2000..2010, got %d", len(requests))
	}

	if !requests[0].Start.Equal(start) {
		t.Errorf("first request start = %v, want %v", requests[0].Start, start)
	}
	wantFirstEnd := date(2000, 12, 31, 12)
	if !requests[0].End.Equal(wantFirstEnd) {
		t.Errorf("first request end = %v, want %v", requests[0].End, wantFirstEnd)
	}

	last := requests[len(requests)-1]
	wantLastStart := date(2010, 1, 1, 12)
	if !last.Start.Equal(wantLastStart) {
		t.Errorf("last request start = %v, want %v", last.Start, wantLastStart)
	}
	if !last.End.Equal(end) {
		t.Errorf("last request end = %v, want %v", last.End, end)
	}

	for i, r := range requests {
		if r.Year != 2000+i {
			t.Fatalf("request %d covers year %d, want %d", i, r.Year, 2000+i)
		}
		if r.Start.Year() != r.Year || r.End.Year() != r.Year {
			t.Errorf("request %d window [%v, %v] leaves year %d", i, r.Start, r.End, r.Year)
		}
	}

	// Intervening years span the full calendar year at 12:00:00.
	for _, r := range requests[1 : len(requests)-1] {
		if !r.Start.Equal(date(r.Year, 1, 1, 12)) || !r.End.Equal(date(r.Year, 12, 31, 12)) {
			t.Errorf("intervening year %d window = [%v, %v]", r.Year, r.Start, r.End)
		}
	}
}

func TestPartition_TwoYears(t *testing.T) {
	start := date(1999, 11, 1, 12)
	end := date(2000, 2, 1, 12)

	requests, err := Partition(start, end, "swe", "b", 0, 0, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if !requests[0].End.Equal(date(1999, 12, 31, 12)) {
		t.Errorf("first request end = %v", requests[0].End)
	}
	if !requests[1].Start.Equal(date(2000, 1, 1, 12)) {
		t.Errorf("second request start = %v", requests[1].Start)
	}
}

func TestPartition_EndBeforeStart(t *testing.T) {
	_, err := Partition(date(2010, 1, 1, 12), date(2009, 1, 1, 12), "prcp", "b", 0, 0, 1, 1)
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestPartition_PropagatesBoundingBox(t *testing.T) {
	requests, err := Partition(date(2001, 1, 1, 12), date(2003, 12, 31, 12), "tmin", "42", -101.5, 44.25, -100.0, 45.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range requests {
		if r.West != -101.5 || r.South != 44.25 || r.East != -100.0 || r.North != 45.0 {
			t.Fatalf("bounding box not propagated: %+v", r)
		}
		if r.Variable != "tmin" || r.Key != "42" {
			t.Fatalf("variable/key not propagated: %+v", r)
		}
	}
}
