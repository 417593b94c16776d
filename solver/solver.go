package solver

import (
	"math/rand"
	"time"

	"minesweeper/game"
)

type MoveType int

const (
	MoveOpen MoveType = iota
	MoveFlag
)

func (t MoveType) String() string {
	if t == MoveFlag {
		return "flag"
	}
	return "open"
}

// 手の決め方
const (
	StrategyLogic     = "Logic"
	StrategyTank      = "Tank"
	StrategyTankGuess = "Tank(Prob)"
	StrategyRandom    = "Random"
)

type Move struct {
	Row        int      `json:"row"`
	Col        int      `json:"col"`
	Type       MoveType `json:"-"`
	Action     string   `json:"action"`
	IsGuess    bool     `json:"is_guess"`   // 運任せかどうか
	Strategy   string   `json:"strategy"`   // "Logic", "Tank", "Tank(Prob)", "Random"
	Confidence float64  `json:"confidence"` // 0.0 ~ 1.0 (安全確率)
}

func newMove(p game.Pos, t MoveType, strategy string, confidence float64) *Move {
	return &Move{
		Row:        p.Row,
		Col:        p.Col,
		Type:       t,
		Action:     t.String(),
		IsGuess:    confidence < 1.0,
		Strategy:   strategy,
		Confidence: confidence,
	}
}

// Solver は見えている情報だけから次の手を決めます
// 開いていないマスの中身は読みません
type Solver struct {
	view game.View
	rand *rand.Rand

	// MaxSegment はタンク探索で扱う未開封マスの上限です
	MaxSegment int
}

// New は Solver を作ります。r が nil なら時刻で初期化した乱数を使います
func New(v game.View, r *rand.Rand) *Solver {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Solver{view: v, rand: r, MaxSegment: 18}
}

// NextMove は次の一手を返します。打つ手がなければ nil です
func (s *Solver) NextMove() *Move {
	// 1. 論理的に「絶対に安全」
	if move := s.findSafeMove(); move != nil {
		return move
	}

	// 2. 論理的に「絶対に地雷」
	if move := s.findFlagMove(); move != nil {
		return move
	}

	// 3. 境界のバックトラック探索
	if move := s.tank(); move != nil {
		return move
	}

	// 4. ランダム
	return s.findRandomMove()
}

// cell は盤面内のマスを返します（範囲外はゼロ値）
func (s *Solver) cell(row, col int) game.Cell {
	c, _ := s.view.Cell(row, col)
	return c
}

// isNumber は開いていて周囲に地雷がある数字マスかどうかを返します
func (s *Solver) isNumber(c game.Cell) bool {
	return c.IsRevealed && !c.IsMine && c.NeighborCount > 0
}

func (s *Solver) findSafeMove() *Move {
	for r := 0; r < s.view.Rows(); r++ {
		for c := 0; c < s.view.Cols(); c++ {
			cell := s.cell(r, c)
			if !s.isNumber(cell) {
				continue
			}
			info := s.neighborsInfo(r, c)
			if info.flags == cell.NeighborCount && len(info.hidden) > 0 {
				return newMove(info.hidden[0], MoveOpen, StrategyLogic, 1.0)
			}
		}
	}
	return nil
}

func (s *Solver) findFlagMove() *Move {
	for r := 0; r < s.view.Rows(); r++ {
		for c := 0; c < s.view.Cols(); c++ {
			cell := s.cell(r, c)
			if !s.isNumber(cell) {
				continue
			}
			info := s.neighborsInfo(r, c)
			if info.flags+len(info.hidden) == cell.NeighborCount && len(info.hidden) > 0 {
				return newMove(info.hidden[0], MoveFlag, StrategyLogic, 1.0)
			}
		}
	}
	return nil
}

func (s *Solver) findRandomMove() *Move {
	candidates := []game.Pos{}
	for r := 0; r < s.view.Rows(); r++ {
		for c := 0; c < s.view.Cols(); c++ {
			cell := s.cell(r, c)
			if !cell.IsRevealed && !cell.IsFlagged {
				candidates = append(candidates, game.Pos{Row: r, Col: c})
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}
	choice := candidates[s.rand.Intn(len(candidates))]
	return newMove(choice, MoveOpen, StrategyRandom, 0.0)
}

type neighborsInfo struct {
	flags  int        // 周囲のフラグ数
	hidden []game.Pos // 周囲の未開封でフラグのないマス
}

func (s *Solver) neighborsInfo(row, col int) neighborsInfo {
	var info neighborsInfo
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := row+dr, col+dc
			n, ok := s.view.Cell(nr, nc)
			if !ok || n.IsRevealed {
				continue
			}
			if n.IsFlagged {
				info.flags++
			} else {
				info.hidden = append(info.hidden, game.Pos{Row: nr, Col: nc})
			}
		}
	}
	return info
}
