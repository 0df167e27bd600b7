package output

import (
	"io"

	"appaudit/internal/report"
	"appaudit/internal/rules"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// CardTitle heads the rendered report card.
const CardTitle = "Report Card"

// RenderCard draws the report card table for w. The Status column is left
// aligned; count columns are right aligned so percentages line up.
func RenderCard(w io.Writer, s report.Summary) string {
	re := lipgloss.NewRenderer(w)
	base := re.NewStyle().Padding(0, 1)
	header := base.Bold(true)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(re.NewStyle().Faint(true)).
		Headers(s.Headers()...).
		Rows(s.Rows()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := base
			if row == table.HeaderRow {
				style = header
			}
			if col > 0 {
				style = style.Align(lipgloss.Right)
			}
			if row >= 0 && row < len(rules.Statuses) && col == 0 {
				style = style.Foreground(statusColor(rules.Statuses[row]))
			}
			return style
		})

	return t.Render()
}

func statusColor(s rules.Status) lipgloss.TerminalColor {
	switch s {
	case rules.StatusPassed:
		return lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	case rules.StatusFailed:
		return lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	case rules.StatusError:
		return lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#bc8cff"}
	default:
		return lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}
	}
}
