package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{"Same Point", Point{0, 0}, Point{0, 0}, 0},
		{"London to Paris", Point{Lat: 51.5074, Lon: -0.1278}, Point{Lat: 48.8566, Lon: 2.3522}, 344000},
		{"Equator 1 degree", Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 1}, 111319},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			// 1% margin for earth radius differences
			if math.Abs(got-tt.want) > tt.want*0.01 {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathLength(t *testing.T) {
	if PathLength(nil) != 0 || PathLength([]Point{{1, 1}}) != 0 {
		t.Error("fewer than two points should have zero length")
	}
	pts := []Point{{0, 0}, {0, 1}, {0, 2}}
	got := PathLength(pts)
	want := Distance(pts[0], pts[1]) + Distance(pts[1], pts[2])
	if math.Abs(got-want) > 1 {
		t.Errorf("PathLength() = %v, want %v", got, want)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{90, 180}, true},
		{Point{-90, -180}, true},
		{Point{90.0001, 0}, false},
		{Point{0, -180.5}, false},
		{Point{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("Valid(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestBounds(t *testing.T) {
	if _, ok := Bounds(nil); ok {
		t.Error("empty input should not produce bounds")
	}
	b, ok := Bounds([]Point{{51.5, -0.1}, {51.6, 0.2}})
	if !ok {
		t.Fatal("expected bounds")
	}
	if b.Min.Lat() != 51.5 || b.Max.Lon() != 0.2 {
		t.Errorf("unexpected bounds %v", b)
	}
}
