package agreement

import (
	"encoding/csv"
	"fmt"
	"html"
	"strings"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

// ToASCII renders the matrix as a fixed-width table with parties sorted on
// both axes.
func (r *Report) ToASCII() string {
	parties := r.Parties()
	if len(parties) == 0 {
		return "No party pairs found.\n"
	}

	colWidth := 5
	for _, party := range parties {
		if len(party) > colWidth {
			colWidth = len(party)
		}
	}

	var sb strings.Builder

	sb.WriteString(strings.Repeat(" ", colWidth+1))
	for _, party := range parties {
		sb.WriteString(fmt.Sprintf("%*s ", colWidth, party))
	}
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat(" ", colWidth+1))
	for range parties {
		sb.WriteString(strings.Repeat("─", colWidth) + " ")
	}
	sb.WriteString("\n")

	for _, row := range parties {
		sb.WriteString(fmt.Sprintf("%*s│", colWidth, row))
		for _, col := range parties {
			if row == col {
				sb.WriteString(fmt.Sprintf("%*s ", colWidth, "-"))
				continue
			}
			if v, ok := r.Lookup(row, col); ok {
				sb.WriteString(fmt.Sprintf("%*.1f ", colWidth, v))
			} else {
				sb.WriteString(fmt.Sprintf("%*s ", colWidth, "·"))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ToCSV renders the matrix as CSV. Pairs that never co-occurred are empty
// cells.
func (r *Report) ToCSV() (string, error) {
	parties := r.Parties()
	if len(parties) == 0 {
		return "", nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := append([]string{"Party"}, parties...)
	if err := w.Write(header); err != nil {
		return "", errors.Wrap(err, "write csv header")
	}

	for _, row := range parties {
		line := []string{row}
		for _, col := range parties {
			switch v, ok := r.Lookup(row, col); {
			case row == col:
				line = append(line, "-")
			case ok:
				line = append(line, fmt.Sprintf("%.1f", v))
			default:
				line = append(line, "")
			}
		}
		if err := w.Write(line); err != nil {
			return "", errors.Wrapf(err, "write csv row %s", row)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "flush csv")
	}
	return sb.String(), nil
}

// ToSVGHeatmap renders the matrix as an SVG heatmap, red for low agreement
// through green for high.
func (r *Report) ToSVGHeatmap() string {
	parties := r.Parties()
	if len(parties) == 0 {
		return ""
	}

	n := len(parties)
	cellSize := 40
	labelWidth := 50
	margin := 20
	width := labelWidth + n*cellSize + margin*2
	height := labelWidth + n*cellSize + margin*2

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
`, width, height, width, height))
	sb.WriteString(`<style>
  .label { font-family: monospace; font-size: 12px; }
  .cell-text { font-family: monospace; font-size: 10px; text-anchor: middle; }
</style>
`)
	sb.WriteString(fmt.Sprintf(`<rect width="%d" height="%d" fill="white"/>
`, width, height))

	for j, party := range parties {
		x := labelWidth + j*cellSize + cellSize/2 + margin
		y := margin + 10
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="label" text-anchor="middle">%s</text>
`, x, y, html.EscapeString(party)))
	}

	for i, row := range parties {
		x := margin + labelWidth - 5
		y := labelWidth + i*cellSize + cellSize/2 + 5 + margin
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="label" text-anchor="end">%s</text>
`, x, y, html.EscapeString(row)))

		for j, col := range parties {
			cellX := labelWidth + j*cellSize + margin
			cellY := labelWidth + i*cellSize + margin

			v, ok := r.Lookup(row, col)
			color := "#f8f8f8"
			switch {
			case i == j:
				color = "#e0e0e0"
			case ok:
				color = heatColor(v)
			}

			sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" fill="%s" stroke="#ccc"/>
`, cellX, cellY, cellSize, cellSize, color))

			if ok && i != j {
				sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="cell-text">%.0f</text>
`, cellX+cellSize/2, cellY+cellSize/2+4, v))
			}
		}
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

// heatColor maps a percentage to a color between red (0) and green (100).
func heatColor(percent float64) string {
	intensity := percent / 100
	red := int(230 - intensity*160)
	green := int(90 + intensity*130)
	blue := 90
	return fmt.Sprintf("rgb(%d,%d,%d)", red, green, blue)
}

// String returns a formatted summary of the report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Party Agreement Matrix\n")
	sb.WriteString(strings.Repeat("═", 60) + "\n\n")
	sb.WriteString(r.ToASCII())
	sb.WriteString("\n")

	if top := r.MostAgreeing(3); len(top) > 0 {
		sb.WriteString("Most agreeing:\n")
		for _, rec := range top {
			sb.WriteString(fmt.Sprintf("  %-12s %5.1f%% (%d/%d)\n", rec.String(), rec.Percent, rec.Agree, rec.Total))
		}
	}
	if bottom := r.LeastAgreeing(3); len(bottom) > 0 {
		sb.WriteString("Least agreeing:\n")
		for _, rec := range bottom {
			sb.WriteString(fmt.Sprintf("  %-12s %5.1f%% (%d/%d)\n", rec.String(), rec.Percent, rec.Agree, rec.Total))
		}
	}

	sb.WriteString(fmt.Sprintf("\nVotes analysed: %d\n", r.VoteCount))
	return sb.String()
}
