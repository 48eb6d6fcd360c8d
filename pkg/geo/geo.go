package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Orb converts to an orb point (lon, lat order).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether the coordinate is within latitude [-90,90] and longitude [-180,180].
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance returns the haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	return orbgeo.DistanceHaversine(p1.Orb(), p2.Orb())
}

// PathLength returns the haversine length of the polyline through points, in meters.
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.Orb()
	}
	return orbgeo.LengthHaversine(ls)
}

// Bounds returns the bounding box of points. ok is false for an empty slice.
func Bounds(points []Point) (b orb.Bound, ok bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.Orb()
	}
	return mp.Bound(), true
}
