package game

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/zyedidia/generic/queue"
)

// ErrInvalidLayout は固定配置の地雷座標が不正な場合のエラーです
var ErrInvalidLayout = errors.New("invalid mine layout")

// Placer は地雷を置く座標を決めます
type Placer interface {
	Place(rows, cols, mines int) []Pos
}

// RandomPlacer は重複した座標を引いたら引き直す方式でランダムに配置します
type RandomPlacer struct {
	Rand *rand.Rand
}

// Place は mines 個の異なる座標を返します
func (p RandomPlacer) Place(rows, cols, mines int) []Pos {
	taken := make(map[Pos]bool, mines)
	out := make([]Pos, 0, mines)
	for len(out) < mines {
		pos := Pos{Row: p.Rand.Intn(rows), Col: p.Rand.Intn(cols)}
		if taken[pos] {
			continue
		}
		taken[pos] = true
		out = append(out, pos)
	}
	return out
}

// FixedPlacer は決められた座標に地雷を置きます（テストやリプレイ用）
type FixedPlacer []Pos

// Place は保持している座標をそのまま返します
func (p FixedPlacer) Place(int, int, int) []Pos {
	out := make([]Pos, len(p))
	copy(out, p)
	return out
}

// NewBoard は指定されたサイズと地雷数で盤面を初期化して返します
func NewBoard(rows, cols, mineCount int, placer Placer) (*Board, error) {
	d := Difficulty{Name: "custom", Rows: rows, Cols: cols, Mines: mineCount}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	cells := make([][]Cell, rows)
	for r := 0; r < rows; r++ {
		cells[r] = make([]Cell, cols)
	}

	board := &Board{
		Rows:      rows,
		Cols:      cols,
		MineCount: mineCount,
		cells:     cells,
	}

	if err := board.placeMines(placer.Place(rows, cols, mineCount)); err != nil {
		return nil, err
	}
	board.calculateNeighbors()

	return board, nil
}

// placeMines は地雷を配置します
func (b *Board) placeMines(mines []Pos) error {
	if len(mines) != b.MineCount {
		return fmt.Errorf("%w: got %d positions, want %d", ErrInvalidLayout, len(mines), b.MineCount)
	}
	for _, p := range mines {
		if !b.InBounds(p.Row, p.Col) {
			return fmt.Errorf("%w: (%d,%d) is outside %dx%d", ErrInvalidLayout, p.Row, p.Col, b.Rows, b.Cols)
		}
		cell := &b.cells[p.Row][p.Col]
		if cell.IsMine {
			return fmt.Errorf("%w: duplicate mine at (%d,%d)", ErrInvalidLayout, p.Row, p.Col)
		}
		cell.IsMine = true
	}
	return nil
}

// calculateNeighbors は全マスの NeighborCount を計算します
func (b *Board) calculateNeighbors() {
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			if b.cells[r][c].IsMine {
				continue
			}
			count := 0
			b.eachNeighbor(r, c, func(nr, nc int) {
				if b.cells[nr][nc].IsMine {
					count++
				}
			})
			b.cells[r][c].NeighborCount = count
		}
	}
}

// InBounds は座標が盤面内かどうかを返します
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows && col >= 0 && col < b.Cols
}

// eachNeighbor は盤面内にある周囲8マスに fn を呼びます（端は折り返さない）
func (b *Board) eachNeighbor(row, col int, fn func(nr, nc int)) {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := row+dr, col+dc
			if b.InBounds(nr, nc) {
				fn(nr, nc)
			}
		}
	}
}

// Neighbors は周囲8マスのうち盤面内の座標を返します
func (b *Board) Neighbors(row, col int) []Pos {
	out := make([]Pos, 0, 8)
	b.eachNeighbor(row, col, func(nr, nc int) {
		out = append(out, Pos{Row: nr, Col: nc})
	})
	return out
}

// Cell は指定された座標のマスのコピーを返します
// 範囲外ならゼロ値と false を返します
func (b *Board) Cell(row, col int) (Cell, bool) {
	if !b.InBounds(row, col) {
		return Cell{}, false
	}
	return b.cells[row][col], true
}

// Open は指定された座標のマスを開けます
// 0のマスからは周囲へ広げます。再帰せずキューで処理するので大きな盤面でもスタックを使いません
// 戻り値: 開いたマスの数と、地雷を踏んだかどうか
func (b *Board) Open(row, col int) (opened int, hitMine bool) {
	if !b.InBounds(row, col) {
		return 0, false
	}
	target := &b.cells[row][col]
	if target.IsRevealed || target.IsFlagged {
		return 0, false
	}

	if target.IsMine {
		target.IsRevealed = true
		return 1, true
	}

	work := queue.New[Pos]()
	work.Enqueue(Pos{Row: row, Col: col})
	for !work.Empty() {
		p := work.Dequeue()
		cell := &b.cells[p.Row][p.Col]
		// 同じマスが複数回キューに入ることがあるので、ここで弾く
		if cell.IsRevealed || cell.IsFlagged || cell.IsMine {
			continue
		}
		cell.IsRevealed = true
		opened++

		if cell.NeighborCount != 0 {
			continue
		}
		b.eachNeighbor(p.Row, p.Col, func(nr, nc int) {
			n := b.cells[nr][nc]
			if !n.IsRevealed && !n.IsFlagged {
				work.Enqueue(Pos{Row: nr, Col: nc})
			}
		})
	}
	return opened, false
}

// RevealMines は全ての地雷を開けます（ゲームオーバー時）
func (b *Board) RevealMines() {
	for r := range b.cells {
		for c := range b.cells[r] {
			if b.cells[r][c].IsMine {
				b.cells[r][c].IsRevealed = true
			}
		}
	}
}

// CheckClear は地雷以外のマスが全て開いているかを返します
// 地雷にフラグがあるかどうかは関係ありません
func (b *Board) CheckClear() bool {
	for r := range b.cells {
		for c := range b.cells[r] {
			cell := b.cells[r][c]
			if !cell.IsMine && !cell.IsRevealed {
				return false
			}
		}
	}
	return true
}

// FlagMines はフラグのない地雷にフラグを立て、新しく立てた数を返します
func (b *Board) FlagMines() int {
	added := 0
	for r := range b.cells {
		for c := range b.cells[r] {
			cell := &b.cells[r][c]
			if cell.IsMine && !cell.IsFlagged {
				cell.IsFlagged = true
				added++
			}
		}
	}
	return added
}

// ToggleFlag は指定された座標のフラッグを切り替えます
// 戻り値: 切り替え後にフラグがあるかどうかと、切り替えたかどうか
func (b *Board) ToggleFlag(row, col int) (flagged, ok bool) {
	if !b.InBounds(row, col) {
		return false, false
	}
	cell := &b.cells[row][col]

	// すでに開いているマスにはフラッグを置けない
	if cell.IsRevealed {
		return false, false
	}

	cell.IsFlagged = !cell.IsFlagged
	return cell.IsFlagged, true
}

// Fprint は現在の盤面を w に書き出します
// 未開封のマスは「-」、フラグは「F」、地雷は「*」、0は「.」、それ以外は数字です
func (b *Board) Fprint(w io.Writer) error {
	if _, err := fmt.Fprint(w, "   "); err != nil {
		return err
	}
	for c := 0; c < b.Cols; c++ {
		fmt.Fprintf(w, "%d ", c%10) // 列番号
	}
	fmt.Fprintln(w)

	for r := 0; r < b.Rows; r++ {
		fmt.Fprintf(w, "%2d:", r) // 行番号
		for c := 0; c < b.Cols; c++ {
			cell := b.cells[r][c]
			switch {
			case cell.IsFlagged:
				fmt.Fprint(w, "F ")
			case !cell.IsRevealed:
				fmt.Fprint(w, "- ")
			case cell.IsMine:
				fmt.Fprint(w, "* ")
			case cell.NeighborCount == 0:
				fmt.Fprint(w, ". ")
			default:
				fmt.Fprintf(w, "%d ", cell.NeighborCount)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
