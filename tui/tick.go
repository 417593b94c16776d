package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickInterval は経過時間を描き直す間隔です
const TickInterval = time.Second

// tickMsg は経過時間の表示を更新するためのメッセージです
// gen が今の世代と違うものは捨てます
type tickMsg struct {
	gen int
	at  time.Time
}

func tickCmd(gen int, interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg{gen: gen, at: t}
	})
}
