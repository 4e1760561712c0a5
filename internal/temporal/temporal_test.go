package temporal

import (
	"testing"

	"github.com/ironsheep/minepoly/internal/store"
	"github.com/paulmach/orb"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

func feature(id int64, g orb.Geometry) store.Feature {
	return store.Feature{ID: id, Geometry: g}
}

func ids(d Dataset) []int64 {
	out := make([]int64, len(d.Features))
	for i, f := range d.Features {
		out[i] = f.ID
	}
	return out
}

func TestFilterFirstYearUsesSuccessorOnly(t *testing.T) {
	in := []Dataset{
		{Year: 2017, Features: []store.Feature{feature(10, square(0, 0, 1))}},
		{Year: 2016, Features: []store.Feature{
			feature(1, square(0.5, 0.5, 1)), // overlaps 2017
			feature(2, square(5, 5, 1)),     // isolated
		}},
	}

	out, reports, err := Filter(in, Options{}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if out[0].Year != 2016 || out[1].Year != 2017 {
		t.Fatalf("years not sorted: %d, %d", out[0].Year, out[1].Year)
	}
	if got := ids(out[0]); len(got) != 1 || got[0] != 1 {
		t.Errorf("2016: expected [1], got %v", got)
	}
	if got := ids(out[1]); len(got) != 1 || got[0] != 10 {
		t.Errorf("2017: expected [10], got %v", got)
	}
	if len(reports[0].Neighbours) != 1 || reports[0].Neighbours[0] != 2017 {
		t.Errorf("unexpected 2016 neighbours %v", reports[0].Neighbours)
	}
}

func TestFilterEitherNeighbourSuffices(t *testing.T) {
	in := []Dataset{
		{Year: 2018, Features: []store.Feature{feature(1, square(0, 0, 1))}},
		{Year: 2019, Features: []store.Feature{
			feature(2, square(0, 0, 1)),   // matches 2018
			feature(3, square(10, 0, 1)),  // matches 2020
			feature(4, square(20, 20, 1)), // matches nothing
		}},
		{Year: 2020, Features: []store.Feature{feature(5, square(10.5, 0.5, 1))}},
	}

	out, _, err := Filter(in, Options{}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if got := ids(out[1]); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("2019: expected [2 3], got %v", got)
	}
}

func TestFilterUsesUnfilteredNeighbours(t *testing.T) {
	// 2018 is judged against the full 2017 and 2019 datasets even though
	// 2019 itself ends up empty.
	in := []Dataset{
		{Year: 2017, Features: []store.Feature{feature(1, square(0, 0, 1))}},
		{Year: 2018, Features: []store.Feature{feature(2, square(0.5, 0, 1))}},
		{Year: 2019, Features: []store.Feature{feature(3, square(50, 50, 1))}},
	}

	out, _, err := Filter(in, Options{}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(out[0].Features) != 1 {
		t.Errorf("2017 should keep its polygon, got %v", ids(out[0]))
	}
	if len(out[1].Features) != 1 {
		t.Errorf("2018 should keep its polygon, got %v", ids(out[1]))
	}
	if len(out[2].Features) != 0 {
		t.Errorf("2019 should lose its polygon, got %v", ids(out[2]))
	}
	if len(in[1].Features) != 1 {
		t.Error("input datasets must not be modified")
	}
}

func TestFilterBuffer(t *testing.T) {
	in := []Dataset{
		{Year: 2020, Features: []store.Feature{feature(1, square(0, 0, 0.01))}},
		{Year: 2021, Features: []store.Feature{feature(2, square(0.0103, 0, 0.01))}},
	}

	out, _, err := Filter(in, Options{}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(out[0].Features) != 0 {
		t.Error("without buffer the 0.0003° gap should separate the polygons")
	}

	out, _, err = Filter(in, Options{Buffer: DefaultBuffer}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(out[0].Features) != 1 || len(out[1].Features) != 1 {
		t.Fatalf("buffer should bridge the gap: %v / %v", ids(out[0]), ids(out[1]))
	}
	if _, ok := out[0].Features[0].Geometry.(orb.Polygon); !ok {
		t.Error("persisted geometry must be the unbuffered input")
	}
	if out[0].Features[0].Geometry.Bound() != square(0, 0, 0.01).Bound() {
		t.Error("persisted geometry must not be buffered")
	}
}

func TestFilterIsolatedYearKept(t *testing.T) {
	in := []Dataset{
		{Year: 2016, Features: []store.Feature{feature(1, square(0, 0, 1))}},
		{Year: 2020, Features: []store.Feature{feature(2, square(5, 5, 1))}},
	}
	out, reports, err := Filter(in, Options{}, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(out[0].Features) != 1 || len(out[1].Features) != 1 {
		t.Error("years without neighbours must be kept unfiltered")
	}
	if len(reports[0].Neighbours) != 0 {
		t.Errorf("expected no neighbours, got %v", reports[0].Neighbours)
	}
}

func TestFilterDuplicateYear(t *testing.T) {
	in := []Dataset{{Year: 2016}, {Year: 2016}}
	if _, _, err := Filter(in, Options{}, nil); err == nil {
		t.Error("expected duplicate year error")
	}
}
