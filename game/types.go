package game

// Cell は1つのマスの情報を持ちます
type Cell struct {
	IsMine        bool // 地雷かどうか
	IsRevealed    bool // すでに開けられたか
	IsFlagged     bool // フラグが立てられているか
	NeighborCount int  // 周囲8マスにある地雷の数
}

// Pos は盤面上の座標です
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board はゲーム盤面全体を持ちます
// cells は外部に渡さず、Cell でコピーを返します
type Board struct {
	Rows      int // 縦のマス数
	Cols      int // 横のマス数
	MineCount int // 地雷の総数
	cells     [][]Cell
}

// Status はゲームの進行状態です
type Status int

const (
	Playing Status = iota
	Won
	Lost
)

func (s Status) String() string {
	switch s {
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "playing"
	}
}

// Outcome は1回の操作の結果です
type Outcome int

const (
	Ignored  Outcome = iota // 何も変わらなかった
	Revealed                // 安全なマスを開けた
	Exploded                // 地雷を踏んだ
	Cleared                 // 全ての安全なマスを開けた
	Flagged                 // フラグを立てた
	Unflagged               // フラグを外した
)

func (o Outcome) String() string {
	switch o {
	case Revealed:
		return "revealed"
	case Exploded:
		return "exploded"
	case Cleared:
		return "cleared"
	case Flagged:
		return "flagged"
	case Unflagged:
		return "unflagged"
	default:
		return "ignored"
	}
}

// Result は Reveal / ToggleFlag の戻り値です
type Result struct {
	Outcome Outcome
	Opened  int // 今回の操作で開いたマスの数
}

// Changed は盤面が変化したかどうかを返します
func (r Result) Changed() bool {
	return r.Outcome != Ignored
}

// View は盤面を読み取るだけのインターフェースです
// Game が満たします
type View interface {
	Rows() int
	Cols() int
	Cell(row, col int) (Cell, bool)
}
