// Package tui はターミナルで遊ぶための bubbletea のモデルです
package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/solver"
)

// 盤面の描画位置。マウスの座標をマスに直すのに使います
const (
	boardTop  = 3 // タイトル、状態、空行の後
	cellWidth = 3
)

// Model は1つのゲームを持つ bubbletea のモデルです
type Model struct {
	game *game.Game
	cat  *locale.Catalog
	log  logrus.FieldLogger

	cursor game.Pos
	hint   *solver.Move

	interval time.Duration
	gen      int  // 盤面を作り直すか終わるたびに増える
	ticking  bool // gen のティックが予約済み
	quitting bool
}

// New はモデルを作ります。opts は game.New に渡されます
func New(d game.Difficulty, cat *locale.Catalog, log logrus.FieldLogger, opts ...game.Option) (Model, error) {
	g, err := game.New(d, opts...)
	if err != nil {
		return Model{}, err
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return Model{game: g, cat: cat, log: log, interval: TickInterval}, nil
}

// Game は遊んでいるゲームを返します
func (m Model) Game() *game.Game { return m.game }

// Cursor はカーソルの位置を返します
func (m Model) Cursor() game.Pos { return m.cursor }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tickMsg:
		return m.handleTick(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		m.gen++
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1, 0)
	case "down", "j":
		m.moveCursor(1, 0)
	case "left", "h":
		m.moveCursor(0, -1)
	case "right", "l":
		m.moveCursor(0, 1)
	case " ", "space", "enter":
		return m.apply(m.game.Reveal(m.cursor.Row, m.cursor.Col), m.cursor)
	case "f":
		return m.apply(m.game.ToggleFlag(m.cursor.Row, m.cursor.Col), m.cursor)
	case "1":
		return m.setDifficulty(game.Easy)
	case "2":
		return m.setDifficulty(game.Medium)
	case "3":
		return m.setDifficulty(game.Hard)
	case "r":
		return m.regenerate(m.game.NewGame())
	case "?":
		m.showHint()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	p, ok := m.cellAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	m.cursor = p
	switch msg.Button {
	case tea.MouseButtonLeft:
		return m.apply(m.game.Reveal(p.Row, p.Col), p)
	case tea.MouseButtonRight:
		return m.apply(m.game.ToggleFlag(p.Row, p.Col), p)
	}
	return m, nil
}

// cellAt は画面上の座標をマスに直します
func (m Model) cellAt(x, y int) (game.Pos, bool) {
	if x < 0 || y < boardTop {
		return game.Pos{}, false
	}
	p := game.Pos{Row: y - boardTop, Col: x / cellWidth}
	if p.Row >= m.game.Rows() || p.Col >= m.game.Cols() {
		return game.Pos{}, false
	}
	return p, true
}

func (m *Model) moveCursor(dr, dc int) {
	m.cursor.Row = clamp(m.cursor.Row+dr, 0, m.game.Rows()-1)
	m.cursor.Col = clamp(m.cursor.Col+dc, 0, m.game.Cols()-1)
}

func clamp(v, lo, hi int) int { return max(lo, min(v, hi)) }

// apply は1手の結果をログに残し、タイマーを合わせます
func (m Model) apply(res game.Result, p game.Pos) (tea.Model, tea.Cmd) {
	if !res.Changed() {
		return m, nil
	}
	m.hint = nil
	fields := logrus.Fields{
		"row":     p.Row,
		"col":     p.Col,
		"outcome": res.Outcome.String(),
		"opened":  res.Opened,
	}
	m.log.WithFields(fields).Debug("move")
	if st := m.game.Status(); st != game.Playing {
		m.log.WithFields(fields).WithField("elapsed", m.game.ElapsedSeconds()).Info("game " + st.String())
	}
	cmd := m.syncTick()
	return m, cmd
}

func (m Model) setDifficulty(d game.Difficulty) (tea.Model, tea.Cmd) {
	if err := m.game.SetDifficulty(d); err != nil {
		m.log.WithError(err).Warn("set difficulty")
		return m, nil
	}
	m.log.WithField("difficulty", d.Name).Info("difficulty changed")
	return m.regenerate(nil)
}

// regenerate は盤面を作り直した後の片付けです。古いティックは捨てられます
func (m Model) regenerate(err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.log.WithError(err).Error("new game")
		return m, nil
	}
	m.gen++
	m.ticking = false
	m.hint = nil
	m.moveCursor(0, 0)
	return m, nil
}

// syncTick はゲームが動いていればティックを予約し、終わっていれば世代を進めます
func (m *Model) syncTick() tea.Cmd {
	if m.game.Status() != game.Playing {
		if m.ticking {
			m.gen++
			m.ticking = false
		}
		return nil
	}
	if !m.game.Running() || m.ticking {
		return nil
	}
	m.ticking = true
	return tickCmd(m.gen, m.interval)
}

func (m Model) handleTick(msg tickMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	if !m.game.Running() {
		m.ticking = false
		return m, nil
	}
	return m, tickCmd(m.gen, m.interval)
}

func (m *Model) showHint() {
	if m.game.Status() != game.Playing {
		m.hint = nil
		return
	}
	m.hint = solver.New(m.game, nil).NextMove()
	if m.hint != nil {
		m.cursor = game.Pos{Row: m.hint.Row, Col: m.hint.Col}
		m.log.WithFields(logrus.Fields{
			"row":      m.hint.Row,
			"col":      m.hint.Col,
			"strategy": m.hint.Strategy,
		}).Debug("hint")
	}
}
