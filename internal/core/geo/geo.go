// Package geo provides coordinate rounding and slippy map tiling used by the
// cache key builder to trade key cardinality against physical hit radius
package geo

import (
	"fmt"
	"math"
)

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// KeyPrecision is the decimal precision coordinates are rounded to before they
// enter a cache key; 3 decimals is roughly a 100m grid at mid latitudes
const KeyPrecision = 3

// Tile is a discretized (zoom, x, y) bucket for grouping nearby locations
type Tile struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// String renders the tile as a stable key fragment
func (t Tile) String() string { return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y) }

// RoundCoord rounds a single coordinate to KeyPrecision decimals
func RoundCoord(v float64) float64 {
	p := math.Pow10(KeyPrecision)
	return math.Round(v*p) / p
}

// Round returns p with both coordinates rounded to key precision
func Round(p Point) Point {
	return Point{Lat: RoundCoord(p.Lat), Lon: RoundCoord(p.Lon)}
}

// TileAt computes the slippy map tile containing p at the given zoom level
// Latitude is clamped to the web mercator domain first
func TileAt(p Point, zoom int) Tile {
	lat := clamp(p.Lat, -85.05112878, 85.05112878)
	lon := clamp(p.Lon, -180, 180)

	n := float64(int(1) << uint(zoom))
	x := int(math.Floor((lon + 180) / 360 * n))
	latRad := lat * math.Pi / 180
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))

	max := int(n) - 1
	if x > max {
		x = max
	}
	if y > max {
		y = max
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return Tile{Zoom: zoom, X: x, Y: y}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
