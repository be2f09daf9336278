package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/ads-routes/pkg/tracking"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// printer writes the console report.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) banner(callsign string, interval time.Duration) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf("Tracking %s (updates every %s)", callsign, interval)))
	fmt.Fprintln(p.w, hintStyle.Render("Press Ctrl+C to stop"))
	fmt.Fprintln(p.w)
}

func (p *printer) searching(callsign string) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf("Looking for flight %s...", callsign)))
	fmt.Fprintln(p.w)
}

// update is the Follow callback.
func (p *printer) update(u tracking.Update) {
	if u.Point != nil {
		p.position(u.N, *u.Point)
		return
	}

	stamp := time.Now().Format("15:04:05")
	if errors.Is(u.Err, tracking.ErrNotFound) {
		fmt.Fprintln(p.w, errStyle.Render(fmt.Sprintf("[%s] ✗ Update #%d: flight not found", stamp, u.N)))
	} else {
		fmt.Fprintln(p.w, errStyle.Render(fmt.Sprintf("[%s] ✗ Update #%d: %v", stamp, u.N, u.Err)))
	}
	if u.Estimated != nil {
		p.field("Estimated", fmt.Sprintf("%.4f°, %.4f° (dead reckoning)", u.Estimated.Latitude, u.Estimated.Longitude))
	}
	fmt.Fprintln(p.w)
}

func (p *printer) position(n int, pt tracking.TrackPoint) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf("[%s] Update #%d: %s", pt.Timestamp.Local().Format("15:04:05"), n, pt.Callsign)))
	for _, line := range positionLines(pt) {
		p.field(line[0], line[1])
	}
	fmt.Fprintln(p.w)
}

// positionLines returns the label/value pairs shown for a position.
// Values the provider did not report are left out.
func positionLines(pt tracking.TrackPoint) [][2]string {
	lines := [][2]string{
		{"Position", fmt.Sprintf("%.4f°, %.4f°", pt.Latitude, pt.Longitude)},
	}
	if pt.AltitudeFt != nil {
		lines = append(lines, [2]string{"Altitude", fmt.Sprintf("%s ft (%s m)", thousands(*pt.AltitudeFt), thousands(*pt.AltitudeM()))})
	}
	if pt.GroundSpeedKts != nil {
		lines = append(lines, [2]string{"Speed", fmt.Sprintf("%.0f kts (%.1f m/s)", *pt.GroundSpeedKts, *pt.SpeedMps())})
	}
	if pt.Track != nil {
		lines = append(lines, [2]string{"Heading", fmt.Sprintf("%.0f°", *pt.Track)})
	}
	if pt.VerticalRateFpm != nil {
		lines = append(lines, [2]string{"Vert Rate", fmt.Sprintf("%+.0f ft/min", *pt.VerticalRateFpm)})
	}
	if pt.Type != "" {
		lines = append(lines, [2]string{"Aircraft", pt.Type})
	}
	if pt.Registration != "" {
		lines = append(lines, [2]string{"Registration", pt.Registration})
	}
	if pt.Origin != "" || pt.Destination != "" {
		lines = append(lines, [2]string{"Route", orUnknown(pt.Origin) + " → " + orUnknown(pt.Destination)})
	}
	return lines
}

func (p *printer) field(label, value string) {
	fmt.Fprintln(p.w, "  "+labelStyle.Render(label)+valueStyle.Render(value))
}

func (p *printer) notFound(callsign string, err error) {
	fmt.Fprintln(p.w, errStyle.Render(fmt.Sprintf("✗ Flight %s not currently tracked", callsign)))

	var nf *tracking.NotFoundError
	if errors.As(err, &nf) && len(nf.Similar) > 0 {
		fmt.Fprintln(p.w, warnStyle.Render("Similar callsigns: "+strings.Join(nf.Similar, ", ")))
	} else if !errors.Is(err, tracking.ErrNotFound) {
		fmt.Fprintln(p.w, errStyle.Render(err.Error()))
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, hintStyle.Render("Tips:"))
	fmt.Fprintln(p.w, hintStyle.Render("  - Try variations: UA262, UAL262"))
	fmt.Fprintln(p.w, hintStyle.Render("  - The flight might not be airborne right now"))
}

func (p *printer) stopped() {
	fmt.Fprintln(p.w, warnStyle.Render("Tracking stopped by user"))
}

func (p *printer) summary(n int) {
	fmt.Fprintln(p.w, okStyle.Render(fmt.Sprintf("✓ Tracked %d position(s)", n)))
}

func (p *printer) saved(what, path string) {
	fmt.Fprintln(p.w, okStyle.Render(fmt.Sprintf("✓ %s saved to: %s", what, path)))
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// thousands formats v rounded to an integer with comma separators.
func thousands(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
