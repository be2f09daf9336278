// Package render draws route records as great-circle lines on a global
// Miller-projected PNG map.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// Options control the rendered map.
type Options struct {
	// Width and Height are the image size in pixels
	Width  int
	Height int

	// DPI converts LineWidth from points to pixels
	DPI int

	Scheme config.ColorScheme

	// Absolute colours routes by flight count (PowerNorm with Gamma)
	// instead of by rank
	Absolute bool
	Gamma    float64

	// LineWidth is in points
	LineWidth float64
	Alpha     float64

	// Segments is the number of great-circle samples per route
	Segments int

	// GraticuleStep is the spacing of grid lines in degrees; 0 disables them
	GraticuleStep float64

	Title string
}

// DefaultOptions returns options for a small screen-scheme map.
func DefaultOptions() Options {
	return Options{
		Width:         1600,
		Height:        1200,
		DPI:           150,
		Scheme:        config.DefaultColorSchemes()["screen"],
		Gamma:         0.3,
		LineWidth:     0.5,
		Alpha:         0.8,
		Segments:      64,
		GraticuleStep: 30,
	}
}

// OptionsFromConfig builds options from the visualization and output
// sections. Figure size in inches is multiplied by the DPI.
func OptionsFromConfig(cfg *config.Config) Options {
	v := cfg.Visualization
	dpi := cfg.Output.DPI
	return Options{
		Width:         int(math.Round(v.Width * float64(dpi))),
		Height:        int(math.Round(v.Height * float64(dpi))),
		DPI:           dpi,
		Scheme:        cfg.Scheme(),
		Absolute:      v.AbsoluteScaling,
		Gamma:         v.PowerNormGamma,
		LineWidth:     v.LineWidth,
		Alpha:         v.Alpha,
		Segments:      v.Segments,
		GraticuleStep: 30,
	}
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", o.Width, o.Height)
	}
	if len(o.Scheme.Gradient) < 2 {
		return errors.New("colour gradient needs at least two stops")
	}
	if o.Absolute && o.Gamma <= 0 {
		return fmt.Errorf("power norm gamma must be positive, got %v", o.Gamma)
	}
	return nil
}

// strokePx returns the line width in pixels, at least one.
func (o Options) strokePx() float64 {
	dpi := o.DPI
	if dpi <= 0 {
		dpi = 72
	}
	return math.Max(1, o.LineWidth*float64(dpi)/72)
}

// Render draws records onto a new image. Routes are drawn in ascending
// count order so the busiest end up on top. An empty slice yields the
// background and graticule only.
func Render(records []routes.RouteRecord, opts Options) (*image.RGBA, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	bg := toNRGBA(opts.Scheme.Background, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	proj := NewMiller(opts.Width, opts.Height)
	p := &painter{dst: img, proj: proj}

	if opts.GraticuleStep > 0 {
		drawGraticule(p, opts.GraticuleStep, toNRGBA(opts.Scheme.Graticule, 1))
	}

	sorted := make([]routes.RouteRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })

	cmap := Colormap{Stops: opts.Scheme.Gradient, N: len(sorted)}
	vmin, vmax := countRange(sorted)
	if opts.Absolute {
		cmap.N = vmax
	}

	width := opts.strokePx()
	segments := opts.Segments
	if segments < 1 {
		segments = 64
	}

	for i, r := range sorted {
		var x float64
		if opts.Absolute {
			x = PowerNorm(float64(r.Count), float64(vmin), float64(vmax), opts.Gamma)
		} else {
			x = float64(i) / float64(len(sorted))
		}
		c := toNRGBA(cmap.At(x), opts.Alpha)
		if c.A == 0 {
			continue
		}

		path := coordinates.GreatCirclePath(r.Departure(), r.Arrival(), segments)
		for _, part := range coordinates.SplitAtAntimeridian(path) {
			p.polyline(part, width, c)
		}
	}

	if opts.Title != "" {
		drawTitle(img, opts.Title, toNRGBA(opts.Scheme.Gradient[len(opts.Scheme.Gradient)-1], 1))
	}

	return img, nil
}

func countRange(rs []routes.RouteRecord) (vmin, vmax int) {
	if len(rs) == 0 {
		return 0, 0
	}
	vmin, vmax = rs[0].Count, rs[0].Count
	for _, r := range rs[1:] {
		vmin = min(vmin, r.Count)
		vmax = max(vmax, r.Count)
	}
	return vmin, vmax
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// RenderFile renders records and writes the PNG to path.
func RenderFile(path string, records []routes.RouteRecord, opts Options) error {
	img, err := Render(records, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// painter strokes projected polylines segment by segment. The rasterizer
// is sized to each segment's bounding box, not the whole image.
type painter struct {
	dst  draw.Image
	proj *Miller
	r    *vector.Rasterizer
}

func (p *painter) polyline(path []coordinates.Geographic, width float64, c color.NRGBA) {
	if len(path) < 2 {
		return
	}
	src := &image.Uniform{C: c}
	x0, y0 := p.proj.Project(path[0])
	for _, pt := range path[1:] {
		x1, y1 := p.proj.Project(pt)
		p.segment(x0, y0, x1, y1, width, src)
		x0, y0 = x1, y1
	}
}

// segment fills the quad of a line of the given width from (x0,y0) to (x1,y1).
func (p *painter) segment(x0, y0, x1, y1, width float64, src image.Image) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length < 1e-9 {
		dx, dy, length = 1, 0, 1
	}
	// Perpendicular half-width offset
	nx, ny := -dy/length*width/2, dx/length*width/2

	minX := int(math.Floor(math.Min(x0, x1) - width))
	minY := int(math.Floor(math.Min(y0, y1) - width))
	maxX := int(math.Ceil(math.Max(x0, x1) + width))
	maxY := int(math.Ceil(math.Max(y0, y1) + width))
	rect := image.Rect(minX, minY, maxX, maxY).Intersect(p.dst.Bounds())
	if rect.Empty() {
		return
	}

	// The mask's origin is drawn at rect.Min, so the path is built
	// relative to the clipped rectangle.
	w, h := rect.Dx(), rect.Dy()
	if p.r == nil {
		p.r = vector.NewRasterizer(w, h)
	} else {
		p.r.Reset(w, h)
	}

	ox, oy := float64(rect.Min.X), float64(rect.Min.Y)
	p.r.MoveTo(float32(x0+nx-ox), float32(y0+ny-oy))
	p.r.LineTo(float32(x1+nx-ox), float32(y1+ny-oy))
	p.r.LineTo(float32(x1-nx-ox), float32(y1-ny-oy))
	p.r.LineTo(float32(x0-nx-ox), float32(y0-ny-oy))
	p.r.ClosePath()

	p.r.Draw(p.dst, rect, src, image.Point{})
}

func drawGraticule(p *painter, step float64, c color.NRGBA) {
	for lon := -180.0; lon <= 180; lon += step {
		p.polyline([]coordinates.Geographic{
			{Latitude: -90, Longitude: lon},
			{Latitude: 90, Longitude: lon},
		}, 1, c)
	}
	for lat := -90.0 + step; lat < 90; lat += step {
		p.polyline([]coordinates.Geographic{
			{Latitude: lat, Longitude: -180},
			{Latitude: lat, Longitude: 180},
		}, 1, c)
	}
}

func drawTitle(dst draw.Image, title string, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: c},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 20),
	}
	d.DrawString(title)
}
