package routes

import (
	"math"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// GridCell is a pair of integer indices identifying one resolution-sized
// latitude/longitude rectangle.
type GridCell struct {
	Lat int
	Lon int
}

// Grid snaps positions to fixed-size cells.
//
// Indices are floor(coordinate / resolution), so every cell covers exactly
// [i*res, (i+1)*res) in both axes, including cells that straddle zero.
// Latitude 90 is folded into the northernmost cell and longitudes are wrapped
// into [-180, 180) first, so 180 and -180 share a cell.
type Grid struct {
	resolution float64
	maxLatIdx  int
}

func newGrid(resolution float64) Grid {
	return Grid{
		resolution: resolution,
		maxLatIdx:  int(math.Ceil(90/resolution)) - 1,
	}
}

// Resolution returns the cell size in degrees.
func (g Grid) Resolution() float64 {
	return g.resolution
}

// Cell returns the cell containing p.
func (g Grid) Cell(p coordinates.Geographic) GridCell {
	lat := int(math.Floor(p.Latitude / g.resolution))
	if lat > g.maxLatIdx {
		lat = g.maxLatIdx
	}
	if lat < -g.maxLatIdx-1 {
		lat = -g.maxLatIdx - 1
	}
	lon := int(math.Floor(coordinates.NormalizeLongitude(p.Longitude) / g.resolution))
	return GridCell{Lat: lat, Lon: lon}
}

// Center returns the centre of a cell, clamped to valid coordinates.
func (g Grid) Center(c GridCell) coordinates.Geographic {
	lat := (float64(c.Lat) + 0.5) * g.resolution
	lon := (float64(c.Lon) + 0.5) * g.resolution
	return coordinates.Geographic{
		Latitude:  math.Max(-90, math.Min(90, lat)),
		Longitude: math.Max(-180, math.Min(180, lon)),
	}
}
