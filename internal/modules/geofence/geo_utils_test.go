package geofence

import (
	"math"
	"testing"

	"colis/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 6.1725, Lng: 1.2314},
			b:         types.Point{Lat: 6.1725, Lng: 1.2314},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "one degree of latitude (~111km)",
			a:         types.Point{Lat: 6.0, Lng: 1.2},
			b:         types.Point{Lat: 7.0, Lng: 1.2},
			wantKm:    111.2,
			tolerance: 1.0,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 6.0, Lng: 1.0}
	b := types.Point{Lat: 7.0, Lng: 2.0}
	d1 := HaversineKm(a, b)
	d2 := HaversineKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceMeters(t *testing.T) {
	a := types.Point{Lat: 6.0, Lng: 1.2}
	b := types.Point{Lat: 6.001, Lng: 1.2}
	got := DistanceMeters(a, b)
	// 0.001 degree of latitude is roughly 111 meters.
	if math.Abs(got-111.2) > 2 {
		t.Errorf("DistanceMeters() = %f, want ~111", got)
	}
}

func unitSquare() []types.Point {
	return []types.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	}
}

func TestContains_UnitSquare(t *testing.T) {
	square := unitSquare()

	tests := []struct {
		name string
		p    types.Point
		want bool
	}{
		{"center", types.Point{Lat: 0.5, Lng: 0.5}, true},
		{"inside near corner", types.Point{Lat: 0.01, Lng: 0.01}, true},
		{"outside right", types.Point{Lat: 0.5, Lng: 1.5}, false},
		{"outside above", types.Point{Lat: 1.5, Lng: 0.5}, false},
		{"outside negative", types.Point{Lat: -0.5, Lng: -0.5}, false},
		{"far away", types.Point{Lat: 50, Lng: 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contains(square, tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestContains_DegeneratePolygons(t *testing.T) {
	p := types.Point{Lat: 0.5, Lng: 0.5}
	if Contains(nil, p) {
		t.Error("nil polygon should contain nothing")
	}
	if Contains([]types.Point{{Lat: 0, Lng: 0}}, p) {
		t.Error("single vertex should contain nothing")
	}
	if Contains([]types.Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, p) {
		t.Error("two vertices should contain nothing")
	}
}

func TestContains_ConcavePolygon(t *testing.T) {
	// A U-shape: the notch in the middle is outside.
	u := []types.Point{
		{Lat: 0, Lng: 0},
		{Lat: 3, Lng: 0},
		{Lat: 3, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 2},
		{Lat: 3, Lng: 2},
		{Lat: 3, Lng: 3},
		{Lat: 0, Lng: 3},
	}
	if !Contains(u, types.Point{Lat: 0.5, Lng: 1.5}) {
		t.Error("expected point in the base of the U to be inside")
	}
	if Contains(u, types.Point{Lat: 2, Lng: 1.5}) {
		t.Error("expected point in the notch to be outside")
	}
}
