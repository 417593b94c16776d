package solver

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"minesweeper/game"
)

// segment は数字マスの制約でつながった未開封マスのまとまりです
type segment struct {
	unknowns []game.Pos // このセグメントに含まれる未開封マス
	rules    []rule     // このセグメント内の数字マス制約
}

type rule struct {
	cells []int // unknowns のインデックス
	mines int   // 必要な地雷数
}

// tank はセグメントごとに地雷配置を全探索し、確定した手か最も安全な手を返します
func (s *Solver) tank() *Move {
	var best *Move
	bestProb := 1.0 // 地雷確率（低いほうが良い）

	for _, seg := range s.createSegments() {
		if len(seg.unknowns) > s.MaxSegment {
			continue
		}

		solutions := solveSegment(seg)
		if len(solutions) == 0 {
			continue // 矛盾（フラグの誤りなど）
		}

		counts := make([]int, len(seg.unknowns))
		for _, sol := range solutions {
			for i, isMine := range sol {
				if isMine {
					counts[i]++
				}
			}
		}

		total := float64(len(solutions))
		for i, count := range counts {
			prob := float64(count) / total
			p := seg.unknowns[i]

			switch {
			case count == 0:
				return newMove(p, MoveOpen, StrategyTank, 1.0)
			case count == len(solutions):
				return newMove(p, MoveFlag, StrategyTank, 1.0)
			case prob < bestProb:
				bestProb = prob
				best = newMove(p, MoveOpen, StrategyTankGuess, 1.0-prob)
			}
		}
	}
	return best
}

func (s *Solver) key(p game.Pos) int { return p.Row*s.view.Cols() + p.Col }

// createSegments は境界の未開封マスを連結成分に分けます
func (s *Solver) createSegments() []*segment {
	// 1. まだ満たされていない数字マスと、その周囲の未開封マス
	type numbered struct {
		pos    game.Pos
		mines  int
		hidden []game.Pos
	}
	var numbers []numbered
	unknowns := mapset.New[game.Pos]()
	for r := 0; r < s.view.Rows(); r++ {
		for c := 0; c < s.view.Cols(); c++ {
			cell := s.cell(r, c)
			if !s.isNumber(cell) {
				continue
			}
			info := s.neighborsInfo(r, c)
			if len(info.hidden) == 0 {
				continue
			}
			numbers = append(numbers, numbered{
				pos:    game.Pos{Row: r, Col: c},
				mines:  cell.NeighborCount - info.flags,
				hidden: info.hidden,
			})
			for _, h := range info.hidden {
				unknowns.Put(h)
			}
		}
	}

	// 2. 同じ数字マスに接する未開封マス同士をつなぐ
	adj := make(map[game.Pos][]game.Pos)
	for _, n := range numbers {
		for i := 0; i < len(n.hidden); i++ {
			for j := i + 1; j < len(n.hidden); j++ {
				adj[n.hidden[i]] = append(adj[n.hidden[i]], n.hidden[j])
				adj[n.hidden[j]] = append(adj[n.hidden[j]], n.hidden[i])
			}
		}
	}

	// map の順序に左右されないよう盤面順に並べる
	var order []game.Pos
	unknowns.Each(func(p game.Pos) { order = append(order, p) })
	sort.Slice(order, func(i, j int) bool { return s.key(order[i]) < s.key(order[j]) })

	// 3. BFS でグループに分け、グループごとに制約を作る
	visited := mapset.New[game.Pos]()
	var segments []*segment
	for _, start := range order {
		if visited.Has(start) {
			continue
		}

		group := []game.Pos{}
		queue := []game.Pos{start}
		visited.Put(start)
		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			group = append(group, curr)
			for _, next := range adj[curr] {
				if !visited.Has(next) {
					visited.Put(next)
					queue = append(queue, next)
				}
			}
		}

		local := make(map[game.Pos]int, len(group))
		for i, p := range group {
			local[p] = i
		}
		seg := &segment{unknowns: group}
		for _, n := range numbers {
			// 数字マスの未開封はすべて同じグループに入る
			if _, ok := local[n.hidden[0]]; !ok {
				continue
			}
			r := rule{cells: make([]int, len(n.hidden)), mines: n.mines}
			for i, h := range n.hidden {
				r.cells[i] = local[h]
			}
			seg.rules = append(seg.rules, r)
		}
		segments = append(segments, seg)
	}
	return segments
}

// --- 探索ロジック ---

func solveSegment(seg *segment) [][]bool {
	var solutions [][]bool
	config := make([]bool, len(seg.unknowns))
	backtrack(seg, 0, config, &solutions)
	return solutions
}

func backtrack(seg *segment, index int, config []bool, solutions *[][]bool) {
	if !isValid(seg, config, index) {
		return // 枝刈り
	}
	if index == len(seg.unknowns) {
		sol := make([]bool, len(config))
		copy(sol, config)
		*solutions = append(*solutions, sol)
		return
	}

	// 仮定1: 地雷
	config[index] = true
	backtrack(seg, index+1, config, solutions)

	// 仮定2: 安全
	config[index] = false
	backtrack(seg, index+1, config, solutions)
}

// isValid は decided 個目までを決めた時点で制約に矛盾がないかを調べます
// 未決定のマスを全て地雷にしても足りない場合も矛盾とします
func isValid(seg *segment, config []bool, decided int) bool {
	for _, r := range seg.rules {
		mines, open := 0, 0
		for _, idx := range r.cells {
			if idx >= decided {
				open++
			} else if config[idx] {
				mines++
			}
		}
		if mines > r.mines || mines+open < r.mines {
			return false
		}
	}
	return true
}
