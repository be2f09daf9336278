package render

import (
	"math"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// millerMaxY is the projected y of the poles.
var millerMaxY = millerY(90)

// millerY is the Miller cylindrical ordinate for a latitude, in radians of
// the equivalent equatorial scale.
func millerY(lat float64) float64 {
	// Clamp just inside the poles; tan(π/2) is finite in floating point but
	// the log would overshoot the extent.
	lat = math.Max(-89.999, math.Min(89.999, lat))
	phi := lat * coordinates.DegreesToRadians
	return 1.25 * math.Log(math.Tan(math.Pi/4+0.4*phi))
}

// Miller maps geographic positions to pixels for a global Miller
// cylindrical map fitted and centred inside a Width × Height image.
type Miller struct {
	Width, Height int

	scale      float64
	offX, offY float64
	mapW, mapH float64
}

// NewMiller fits the global extent into the image, keeping the projection's
// aspect ratio.
func NewMiller(width, height int) *Miller {
	worldW := 2 * math.Pi
	worldH := 2 * millerY(90)

	scale := math.Min(float64(width)/worldW, float64(height)/worldH)
	m := &Miller{
		Width:  width,
		Height: height,
		scale:  scale,
		mapW:   worldW * scale,
		mapH:   worldH * scale,
	}
	m.offX = (float64(width) - m.mapW) / 2
	m.offY = (float64(height) - m.mapH) / 2
	return m
}

// Project returns pixel coordinates; y grows downwards.
func (m *Miller) Project(p coordinates.Geographic) (x, y float64) {
	lon := p.Longitude * coordinates.DegreesToRadians
	x = m.offX + (lon+math.Pi)*m.scale
	y = m.offY + (millerMaxY-millerY(p.Latitude))*m.scale
	return x, y
}

// Bounds returns the pixel rectangle occupied by the map.
func (m *Miller) Bounds() (minX, minY, maxX, maxY float64) {
	return m.offX, m.offY, m.offX + m.mapW, m.offY + m.mapH
}
