package main

import (
	"math"
	"strings"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// Density ramp, lightest first
var shades = []rune(".:-=+*#%@")

// worldMap is an equirectangular character grid of the whole world.
type worldMap struct {
	width, height int
	heat          [][]int
	overlay       [][]rune
}

func newWorldMap(width, height int) *worldMap {
	if width < 10 {
		width = 10
	}
	if height < 5 {
		height = 5
	}
	w := &worldMap{width: width, height: height}
	w.heat = make([][]int, height)
	w.overlay = make([][]rune, height)
	for y := range w.heat {
		w.heat[y] = make([]int, width)
		w.overlay[y] = make([]rune, width)
	}
	return w
}

// cell maps a position to grid coordinates. Latitude 90 is the top row,
// longitude -180 the left column.
func (w *worldMap) cell(p coordinates.Geographic) (x, y int) {
	x = int(math.Floor((p.Longitude + 180) / 360 * float64(w.width)))
	y = int(math.Floor((90 - p.Latitude) / 180 * float64(w.height)))
	return clamp(x, 0, w.width-1), clamp(y, 0, w.height-1)
}

// samples returns how many great-circle points keep a route continuous on
// the grid.
func (w *worldMap) samples(r routes.RouteRecord) int {
	km := coordinates.DistanceKm(r.Departure(), r.Arrival())
	degPerCell := 360.0 / float64(w.width)
	n := int(math.Ceil(km/111.0/degPerCell)) * 2
	return clamp(n, 2, 4*w.width)
}

// addRoute adds the route's count to every cell it crosses, once per cell.
func (w *worldMap) addRoute(r routes.RouteRecord) {
	seen := make(map[[2]int]bool)
	for _, p := range coordinates.GreatCirclePath(r.Departure(), r.Arrival(), w.samples(r)) {
		x, y := w.cell(p)
		if seen[[2]int{x, y}] {
			continue
		}
		seen[[2]int{x, y}] = true
		w.heat[y][x] += r.Count
	}
}

// highlight draws a route on top of the heat map with its endpoints marked.
func (w *worldMap) highlight(r routes.RouteRecord) {
	for _, p := range coordinates.GreatCirclePath(r.Departure(), r.Arrival(), w.samples(r)) {
		x, y := w.cell(p)
		w.overlay[y][x] = 'o'
	}
	x, y := w.cell(r.Departure())
	w.overlay[y][x] = 'D'
	x, y = w.cell(r.Arrival())
	w.overlay[y][x] = 'A'
}

// shade maps a heat value to a rune on a log scale relative to peak.
func shade(v, peak int) rune {
	if v <= 0 || peak <= 0 {
		return ' '
	}
	if peak == 1 {
		return shades[0]
	}
	i := int(math.Log(float64(v)) / math.Log(float64(peak)) * float64(len(shades)-1))
	return shades[clamp(i, 0, len(shades)-1)]
}

// lines renders the grid without styling: overlay, then heat, then the
// equator and prime meridian as faint guides.
func (w *worldMap) lines() []string {
	peak := 0
	for _, row := range w.heat {
		for _, v := range row {
			peak = max(peak, v)
		}
	}

	eqX, eqY := w.cell(coordinates.Geographic{})
	out := make([]string, w.height)
	for y := 0; y < w.height; y++ {
		var b strings.Builder
		for x := 0; x < w.width; x++ {
			switch {
			case w.overlay[y][x] != 0:
				b.WriteRune(w.overlay[y][x])
			case w.heat[y][x] > 0:
				b.WriteRune(shade(w.heat[y][x], peak))
			case y == eqY:
				b.WriteRune('─')
			case x == eqX:
				b.WriteRune('│')
			default:
				b.WriteRune(' ')
			}
		}
		out[y] = b.String()
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
