package render

import (
	"image/color"
	"math"

	"github.com/unklstewy/ads-routes/pkg/config"
)

// Colormap interpolates linearly between equally spaced stops and quantizes
// the result to N levels.
type Colormap struct {
	Stops []config.RGBA
	N     int
}

// At returns the colour for x in [0, 1]; values outside are clamped.
func (c Colormap) At(x float64) config.RGBA {
	if len(c.Stops) == 0 {
		return config.RGBA{}
	}
	if len(c.Stops) == 1 {
		return c.Stops[0]
	}
	if math.IsNaN(x) {
		x = 0
	}
	x = math.Max(0, math.Min(1, x))

	if c.N > 0 {
		level := int(x * float64(c.N))
		if level >= c.N {
			level = c.N - 1
		}
		if c.N == 1 {
			x = 0
		} else {
			x = float64(level) / float64(c.N-1)
		}
	}

	pos := x * float64(len(c.Stops)-1)
	i := int(pos)
	if i >= len(c.Stops)-1 {
		return c.Stops[len(c.Stops)-1]
	}
	f := pos - float64(i)
	a, b := c.Stops[i], c.Stops[i+1]
	var out config.RGBA
	for k := range out {
		out[k] = a[k] + (b[k]-a[k])*f
	}
	return out
}

// PowerNorm maps v from [vmin, vmax] to [0, 1] and raises it to gamma.
// A degenerate range maps everything to 0.
func PowerNorm(v, vmin, vmax, gamma float64) float64 {
	if vmax <= vmin {
		return 0
	}
	x := (v - vmin) / (vmax - vmin)
	x = math.Max(0, math.Min(1, x))
	return math.Pow(x, gamma)
}

// toNRGBA converts a [0, 1] colour to 8-bit, scaling its alpha.
func toNRGBA(c config.RGBA, alpha float64) color.NRGBA {
	ch := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.NRGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3] * alpha)}
}
