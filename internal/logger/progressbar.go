package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// barWidth is the number of cells between the brackets
const barWidth = 10

// Progress is how far a stage has come through its inputs
type Progress struct {
	Label string
	Done  int
	Total int
}

// Percent returns the completed share clamped to 0-100
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return min(max(p.Done*100/p.Total, 0), 100)
}

// Bar renders the progress, e.g. "Ingest [=====     ] 2/4 (50%)".
// Completed bars are green and running ones cyan when colored is set.
func (p Progress) Bar(colored bool) string {
	perc := p.Percent()
	filled := perc * barWidth / 100
	out := fmt.Sprintf("[%s%s] %d/%d (%d%%)",
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled), p.Done, p.Total, perc)
	if p.Label != "" {
		out = p.Label + " " + out
	}

	if !colored {
		return out
	}
	if perc == 100 {
		return color.New(color.FgGreen).Sprint(out)
	}
	return color.New(color.FgCyan).Sprint(out)
}
