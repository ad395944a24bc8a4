package cli

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour scheme of styled summaries.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is bright green on dim grey.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles are derived from a Theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Foreground(t.Dim),
		Value:  lipgloss.NewStyle().Bold(true),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:   lipgloss.NewStyle().Foreground(t.Dim).Italic(true),
	}
}

// Row is one label/value line of a Summary.
type Row struct {
	Label string
	Value string
}

// Summary is a boxed block of rows with an optional trend line, used for
// end-of-command reports.
type Summary struct {
	Styles Styles
	Title  string
	Rows   []Row
	// Trend is drawn as a sparkline under the rows, e.g. per-epoch loss.
	Trend      []float64
	TrendLabel string
	Footer     string
}

// Render returns the summary as a string ready to print.
func (s Summary) Render() string {
	width := 0
	for _, r := range s.Rows {
		width = max(width, lipgloss.Width(r.Label))
	}
	lines := []string{s.Styles.Title.Render(s.Title), ""}
	for _, r := range s.Rows {
		pad := strings.Repeat(" ", width-lipgloss.Width(r.Label))
		lines = append(lines, s.Styles.Label.Render(r.Label)+pad+"  "+s.Styles.Value.Render(r.Value))
	}
	if len(s.Trend) > 0 {
		label := s.TrendLabel
		if label == "" {
			label = "trend"
		}
		pad := strings.Repeat(" ", max(0, width-lipgloss.Width(label)))
		lines = append(lines, s.Styles.Label.Render(label)+pad+"  "+Sparkline(s.Trend))
	}
	if s.Footer != "" {
		lines = append(lines, "", s.Styles.Help.Render(s.Footer))
	}
	return s.Styles.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline maps values onto eight block heights between their minimum
// and maximum. Non-finite values render as spaces.
func Sparkline(values []float64) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			b.WriteRune(' ')
		case hi == lo:
			b.WriteRune(sparks[0])
		default:
			i := int(math.Round((v - lo) / (hi - lo) * float64(len(sparks)-1)))
			b.WriteRune(sparks[i])
		}
	}
	return b.String()
}
