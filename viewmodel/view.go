package viewmodel

import (
	"encoding/json"
	"strconv"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/solver"
)

// マスの状態
const (
	StateHidden  = "hidden"
	StateFlagged = "flagged"
	StateOpened  = "opened"
)

// 顔の種類
const (
	FaceNeutral = "neutral"
	FaceHappy   = "happy"
	FaceDead    = "dead"
)

const (
	FlagSymbol = "🚩"
	MineSymbol = "💣"
)

var faceSymbols = map[string]string{
	FaceNeutral: "🙂",
	FaceHappy:   "😎",
	FaceDead:    "😵",
}

// CellView は1マス分の表示内容です
// 開いていない地雷は IsMine に出しません
type CellView struct {
	State  string `json:"state"`
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
	IsMine bool   `json:"is_mine"`
}

// GameView は描画側が読む盤面全体の表示内容です
type GameView struct {
	ID             string       `json:"id,omitempty"`
	Difficulty     string       `json:"difficulty"`
	DifficultyText string       `json:"difficulty_text"`
	Rows           int          `json:"rows"`
	Cols           int          `json:"cols"`
	Cells          [][]CellView `json:"cells"`
	Status         string       `json:"status"`
	StatusText     string       `json:"status_text"`
	Face           string       `json:"face"`
	FaceSymbol     string       `json:"face_symbol"`
	MinesRemaining int          `json:"mines_remaining"`
	Elapsed        int          `json:"elapsed"`
	Banner         string       `json:"banner,omitempty"`
	IsGameOver     bool         `json:"is_game_over"`
	IsGameClear    bool         `json:"is_game_clear"`
}

// Symbol はマスに表示する文字を返します
// フラグ > 未開封（空）> 地雷 > 数字（0は空）の順に決まります
func Symbol(c game.Cell) string {
	switch {
	case c.IsFlagged:
		return FlagSymbol
	case !c.IsRevealed:
		return ""
	case c.IsMine:
		return MineSymbol
	case c.NeighborCount == 0:
		return ""
	default:
		return strconv.Itoa(c.NeighborCount)
	}
}

// NewCellView は1マス分の表示内容を作ります
func NewCellView(c game.Cell) CellView {
	v := CellView{Symbol: Symbol(c)}
	switch {
	case c.IsFlagged:
		v.State = StateFlagged
	case !c.IsRevealed:
		v.State = StateHidden
	default:
		v.State = StateOpened
		v.IsMine = c.IsMine
		v.Count = c.NeighborCount
	}
	return v
}

// Face はゲームの状態に対応する顔を返します
func Face(s game.Status) string {
	switch s {
	case game.Won:
		return FaceHappy
	case game.Lost:
		return FaceDead
	default:
		return FaceNeutral
	}
}

// FaceSymbol は顔の絵文字を返します
func FaceSymbol(face string) string {
	return faceSymbols[face]
}

func statusKey(s game.Status) string {
	switch s {
	case game.Won:
		return locale.StatusWon
	case game.Lost:
		return locale.StatusLost
	default:
		return locale.StatusPlaying
	}
}

// Banner は勝敗のメッセージを返します（プレイ中は空）
func Banner(s game.Status, cat *locale.Catalog) string {
	switch s {
	case game.Won:
		return cat.Text(locale.BannerWon)
	case game.Lost:
		return cat.Text(locale.BannerLost)
	default:
		return ""
	}
}

// NewGameView は現在のゲームから表示内容を作ります
func NewGameView(g *game.Game, cat *locale.Catalog) GameView {
	rows, cols := g.Rows(), g.Cols()
	grid := make([][]CellView, rows)
	for r := 0; r < rows; r++ {
		grid[r] = make([]CellView, cols)
		for c := 0; c < cols; c++ {
			cell, _ := g.Cell(r, c)
			grid[r][c] = NewCellView(cell)
		}
	}

	status := g.Status()
	face := Face(status)
	d := g.Difficulty()
	return GameView{
		Difficulty:     d.Name,
		DifficultyText: cat.Difficulty(d.Name),
		Rows:           rows,
		Cols:           cols,
		Cells:          grid,
		Status:         status.String(),
		StatusText:     cat.Text(statusKey(status)),
		Face:           face,
		FaceSymbol:     FaceSymbol(face),
		MinesRemaining: g.MinesRemaining(),
		Elapsed:        g.ElapsedSeconds(),
		Banner:         Banner(status, cat),
		IsGameOver:     status == game.Lost,
		IsGameClear:    status == game.Won,
	}
}

// JSON は表示内容をJSON文字列にします
func (v GameView) JSON() string {
	bytes, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(bytes)
}

// NewGameJSON は安全にJSONを返します
// ゲームがまだない場合は空のJSONオブジェクトを返します
func NewGameJSON(g *game.Game, cat *locale.Catalog) string {
	if g == nil {
		return "{}"
	}
	return NewGameView(g, cat).JSON()
}

// HintText はヒントの一手を文章にします
// フラグの一手では Confidence を地雷である確率として出します
func HintText(cat *locale.Catalog, m *solver.Move) string {
	if m == nil {
		return ""
	}
	if m.Type == solver.MoveFlag {
		return cat.Textf(locale.HintFlag, m.Row, m.Col, m.Strategy, m.Confidence*100)
	}
	return cat.Textf(locale.Hint, m.Action, m.Row, m.Col, m.Strategy, m.Confidence*100)
}
