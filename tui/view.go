package tui

import (
	"fmt"
	"strconv"
	"strings"

	"minesweeper/locale"
	"minesweeper/viewmodel"
)

// cellText はターミナル用の1文字表示です
func cellText(c viewmodel.CellView) string {
	switch {
	case c.State == viewmodel.StateFlagged:
		return "F"
	case c.State == viewmodel.StateHidden:
		return "-"
	case c.IsMine:
		return "*"
	case c.Count == 0:
		return "."
	default:
		return strconv.Itoa(c.Count)
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := viewmodel.NewGameView(m.game, m.cat)

	var b strings.Builder
	// 盤面より上は boardTop 行ちょうどにする
	fmt.Fprintf(&b, "%s  %s\n", m.cat.Text(locale.Title), v.DifficultyText)
	fmt.Fprintf(&b, "%s  %s %d  %s %s\n",
		v.FaceSymbol,
		m.cat.Text(locale.LabelMines), v.MinesRemaining,
		m.cat.Text(locale.LabelTime), m.cat.Textf(locale.Seconds, v.Elapsed),
	)
	b.WriteString("\n")

	for r, row := range v.Cells {
		for c, cell := range row {
			if r == m.cursor.Row && c == m.cursor.Col {
				fmt.Fprintf(&b, "[%s]", cellText(cell))
			} else {
				fmt.Fprintf(&b, " %s ", cellText(cell))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case v.Banner != "":
		b.WriteString(v.Banner + "  (r: " + m.cat.Text(locale.Reset) + ")\n")
	case m.hint != nil:
		b.WriteString(viewmodel.HintText(m.cat, m.hint) + "\n")
	default:
		b.WriteString(v.StatusText + "\n")
	}
	b.WriteString(m.cat.Text(locale.HelpKeys) + "\n")
	return b.String()
}
