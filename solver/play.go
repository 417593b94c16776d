package solver

import (
	"math/rand"

	"minesweeper/game"
)

// Step は次の一手を決めてゲームに打ちます。打つ手がなければ nil を返します
func Step(g *game.Game, r *rand.Rand) (*Move, game.Result) {
	if g.Status() != game.Playing {
		return nil, game.Result{}
	}
	move := New(g, r).NextMove()
	if move == nil {
		return nil, game.Result{}
	}
	if move.Type == MoveFlag {
		return move, g.ToggleFlag(move.Row, move.Col)
	}
	return move, g.Reveal(move.Row, move.Col)
}

// Stats は1ゲーム分の成績です
type Stats struct {
	Won     bool
	Moves   int
	Guesses int
}

// Play はゲームが終わるか打つ手がなくなるまで打ち続けます
func Play(g *game.Game, r *rand.Rand) Stats {
	var st Stats
	for g.Status() == game.Playing {
		move, res := Step(g, r)
		if move == nil || !res.Changed() {
			break
		}
		st.Moves++
		if move.IsGuess {
			st.Guesses++
		}
	}
	st.Won = g.Status() == game.Won
	return st
}
