package main

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// Default viewport when the terminal size is unknown
const (
	defaultMapWidth  = 96
	defaultMapHeight = 24
	listRows         = 10
)

type sortMode int

const (
	sortByCount sortMode = iota
	sortByDistance
	sortByDeparture
)

func (s sortMode) String() string {
	switch s {
	case sortByDistance:
		return "distance"
	case sortByDeparture:
		return "departure"
	default:
		return "flights"
	}
}

type model struct {
	source string
	all    []routes.RouteRecord

	minFlights int
	maxCount   int
	sortBy     sortMode
	ascending  bool

	selected int
	offset   int

	mapWidth  int
	mapHeight int

	// visible is recomputed whenever the filter or sort changes
	visible []routes.RouteRecord
}

func newModel(source string, records []routes.RouteRecord, minFlights int) model {
	m := model{
		source:     source,
		all:        records,
		minFlights: max(minFlights, 1),
		mapWidth:   defaultMapWidth,
		mapHeight:  defaultMapHeight,
	}
	for _, r := range records {
		m.maxCount = max(m.maxCount, r.Count)
	}
	m.refresh()
	return m
}

func routeKm(r routes.RouteRecord) float64 {
	return coordinates.DistanceKm(r.Departure(), r.Arrival())
}

// refresh rebuilds the visible list and keeps the selection in range.
func (m *model) refresh() {
	m.visible = make([]routes.RouteRecord, 0, len(m.all))
	for _, r := range m.all {
		if r.Count >= m.minFlights {
			m.visible = append(m.visible, r)
		}
	}

	less := func(a, b routes.RouteRecord) bool {
		switch m.sortBy {
		case sortByDistance:
			return routeKm(a) > routeKm(b)
		case sortByDeparture:
			if a.DepLat != b.DepLat {
				return a.DepLat > b.DepLat
			}
			return a.DepLon < b.DepLon
		default:
			return a.Count > b.Count
		}
	}
	sort.SliceStable(m.visible, func(i, j int) bool {
		if m.ascending {
			return less(m.visible[j], m.visible[i])
		}
		return less(m.visible[i], m.visible[j])
	})

	m.selected = clamp(m.selected, 0, max(len(m.visible)-1, 0))
	m.scroll()
}

// scroll keeps the selected row inside the list window.
func (m *model) scroll() {
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+listRows {
		m.offset = m.selected - listRows + 1
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.mapWidth = max(msg.Width-2, 10)
		// Room for title, list, status and help
		m.mapHeight = max(msg.Height-listRows-8, 5)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.scroll()
			}
		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
				m.scroll()
			}
		case "pgdown":
			m.selected = clamp(m.selected+listRows, 0, max(len(m.visible)-1, 0))
			m.scroll()
		case "pgup":
			m.selected = clamp(m.selected-listRows, 0, max(len(m.visible)-1, 0))
			m.scroll()
		case "+", "=":
			if m.minFlights < m.maxCount {
				m.minFlights++
				m.refresh()
			}
		case "-", "_":
			if m.minFlights > 1 {
				m.minFlights--
				m.refresh()
			}
		case "s":
			m.sortBy = (m.sortBy + 1) % 3
			m.refresh()
		case "r":
			m.ascending = !m.ascending
			m.refresh()
		}
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("ADS-ROUTES VIEWER  " + m.source))
	s.WriteString("\n")

	s.WriteString(m.renderMap())
	s.WriteString("\n")
	s.WriteString(m.renderList())
	s.WriteString("\n")

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	order := "desc"
	if m.ascending {
		order = "asc"
	}
	s.WriteString(statusStyle.Render(fmt.Sprintf("%d of %d routes  min flights: %d  sort: %s (%s)",
		len(m.visible), len(m.all), m.minFlights, m.sortBy, order)))
	s.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString(helpStyle.Render("↑/↓: Select  +/-: Min flights  S: Sort  R: Reverse  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

func (m model) renderMap() string {
	w := newWorldMap(m.mapWidth, m.mapHeight)
	for _, r := range m.visible {
		w.addRoute(r)
	}
	if len(m.visible) > 0 {
		w.highlight(m.visible[m.selected])
	}

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	heatStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	markStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))

	var b strings.Builder
	b.WriteString(borderStyle.Render("┌" + strings.Repeat("─", w.width) + "┐"))
	b.WriteString("\n")
	for _, line := range w.lines() {
		b.WriteString(borderStyle.Render("│"))
		for _, r := range line {
			switch {
			case r == 'o' || r == 'D' || r == 'A':
				b.WriteString(markStyle.Render(string(r)))
			case strings.ContainsRune(string(shades), r):
				b.WriteString(heatStyle.Render(string(r)))
			case r == '─' || r == '│':
				b.WriteString(borderStyle.Render(string(r)))
			default:
				b.WriteRune(r)
			}
		}
		b.WriteString(borderStyle.Render("│"))
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("└" + strings.Repeat("─", w.width) + "┘"))
	return b.String()
}

func (m model) renderList() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	selStyle := rowStyle.Background(lipgloss.Color("237")).Bold(true)

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-20s  %-20s  %7s  %8s", "Departure", "Arrival", "Flights", "Km")))
	b.WriteString("\n")

	if len(m.visible) == 0 {
		b.WriteString(rowStyle.Render(fmt.Sprintf("  No routes with at least %d flights", m.minFlights)))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.offset+listRows, len(m.visible))
	for i := m.offset; i < end; i++ {
		r := m.visible[i]
		line := fmt.Sprintf("  %-20s  %-20s  %7d  %8.0f",
			formatPoint(r.DepLat, r.DepLon), formatPoint(r.ArrLat, r.ArrLon), r.Count, routeKm(r))
		if i == m.selected {
			b.WriteString(selStyle.Render(">" + line[1:]))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatPoint renders a position as e.g. "37.50N 122.50W".
func formatPoint(lat, lon float64) string {
	ns, ew := 'N', 'E'
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	if lon < 0 {
		ew, lon = 'W', -lon
	}
	return fmt.Sprintf("%.2f%c %.2f%c", lat, ns, lon, ew)
}
