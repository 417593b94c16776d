package game

import (
	"io"
	"math/rand"
	"time"
)

// Game は1人用ゲームの状態を全て持ちます
// ロックは持たないので、呼び出し側が1つの流れから操作してください
type Game struct {
	difficulty Difficulty
	board      *Board
	status     Status
	flagCount  int
	startedAt  time.Time // ゼロ値なら未開始
	endedAt    time.Time

	placer Placer
	now    func() time.Time
}

// Option は New の設定です
type Option func(*Game)

// WithRand は地雷配置に使う乱数を指定します
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.placer = RandomPlacer{Rand: r} }
}

// WithPlacer は地雷配置の方法を指定します
func WithPlacer(p Placer) Option {
	return func(g *Game) { g.placer = p }
}

// WithClock は経過時間の計算に使う時計を指定します
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// New は指定された難易度で新しいゲームを作ります
func New(d Difficulty, opts ...Option) (*Game, error) {
	g := &Game{
		difficulty: d,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.placer == nil {
		g.placer = RandomPlacer{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	if err := g.regenerate(d); err != nil {
		return nil, err
	}
	return g, nil
}

// regenerate は盤面を作り直し、状態・フラグ数・タイマーを初期化します
func (g *Game) regenerate(d Difficulty) error {
	if err := d.Validate(); err != nil {
		return err
	}
	board, err := NewBoard(d.Rows, d.Cols, d.Mines, g.placer)
	if err != nil {
		return err
	}
	g.difficulty = d
	g.board = board
	g.status = Playing
	g.flagCount = 0
	g.startedAt = time.Time{}
	g.endedAt = time.Time{}
	return nil
}

// NewGame は現在の難易度で盤面を作り直します（状態に関係なく Playing に戻る）
func (g *Game) NewGame() error {
	return g.regenerate(g.difficulty)
}

// SetDifficulty は難易度を変えて盤面を作り直します
// 不正な難易度なら現在のゲームはそのまま残ります
func (g *Game) SetDifficulty(d Difficulty) error {
	return g.regenerate(d)
}

// startTimer は最初の操作で開始時刻を記録します
func (g *Game) startTimer() {
	if g.startedAt.IsZero() {
		g.startedAt = g.now()
	}
}

func (g *Game) finish(s Status) {
	g.status = s
	g.endedAt = g.now()
}

// Reveal は指定されたマスを開けます
// プレイ中でない・範囲外・開封済み・フラグ付きの場合は何もしません
func (g *Game) Reveal(row, col int) Result {
	if g.status != Playing {
		return Result{}
	}
	cell, ok := g.board.Cell(row, col)
	if !ok || cell.IsRevealed || cell.IsFlagged {
		return Result{}
	}

	g.startTimer()

	opened, hitMine := g.board.Open(row, col)
	if hitMine {
		g.finish(Lost)
		g.board.RevealMines()
		return Result{Outcome: Exploded, Opened: opened}
	}

	if g.checkWin() {
		return Result{Outcome: Cleared, Opened: opened}
	}
	return Result{Outcome: Revealed, Opened: opened}
}

// ToggleFlag は指定されたマスのフラグを切り替えます
func (g *Game) ToggleFlag(row, col int) Result {
	if g.status != Playing {
		return Result{}
	}
	cell, ok := g.board.Cell(row, col)
	if !ok || cell.IsRevealed {
		return Result{}
	}

	g.startTimer()

	flagged, _ := g.board.ToggleFlag(row, col)
	outcome := Unflagged
	if flagged {
		g.flagCount++
		outcome = Flagged
	} else {
		g.flagCount--
	}

	// フラグだけでクリア条件が変わることはないが、判定は通しておく
	g.checkWin()
	return Result{Outcome: outcome}
}

// checkWin はクリア判定をし、クリアなら残りの地雷にフラグを立てます
// 自動で立てたフラグは flagCount に数えません
func (g *Game) checkWin() bool {
	if !g.board.CheckClear() {
		return false
	}
	g.finish(Won)
	g.board.FlagMines()
	return true
}

// Status は現在の状態を返します
func (g *Game) Status() Status { return g.status }

// Difficulty は現在の難易度を返します
func (g *Game) Difficulty() Difficulty { return g.difficulty }

// Rows は盤面の行数を返します
func (g *Game) Rows() int { return g.board.Rows }

// Cols は盤面の列数を返します
func (g *Game) Cols() int { return g.board.Cols }

// Cell は指定されたマスのコピーを返します
func (g *Game) Cell(row, col int) (Cell, bool) { return g.board.Cell(row, col) }

// FlagCount は立っているフラグの数を返します
func (g *Game) FlagCount() int { return g.flagCount }

// MinesRemaining は「地雷数 - フラグ数」を返します（負にもなる）
func (g *Game) MinesRemaining() int { return g.board.MineCount - g.flagCount }

// Started は最初の操作が済んでいるかを返します
func (g *Game) Started() bool { return !g.startedAt.IsZero() }

// StartedAt は最初の操作の時刻を返します（未開始ならゼロ値）
func (g *Game) StartedAt() time.Time { return g.startedAt }

// Running はタイマーが動いているべき状態かを返します
func (g *Game) Running() bool { return g.Started() && g.status == Playing }

// Elapsed は開始からの経過時間を毎回計算して返します
// 終了後は終了時刻で止まります
func (g *Game) Elapsed() time.Duration {
	if g.startedAt.IsZero() {
		return 0
	}
	end := g.now()
	if !g.endedAt.IsZero() {
		end = g.endedAt
	}
	if d := end.Sub(g.startedAt); d > 0 {
		return d
	}
	return 0
}

// ElapsedSeconds は経過秒数（切り捨て）を返します
func (g *Game) ElapsedSeconds() int {
	return int(g.Elapsed() / time.Second)
}

// Fprint は盤面を w に書き出します（デバッグ用）
func (g *Game) Fprint(w io.Writer) error { return g.board.Fprint(w) }
