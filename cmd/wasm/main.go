//go:build js && wasm

package main

import (
	"encoding/json"
	"math/rand"
	"syscall/js"
	"time"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/solver"
	"minesweeper/viewmodel"
)

// GameSession はブラウザ上の1つのゲームを保持します
type GameSession struct {
	game *game.Game
	cat  *locale.Catalog
	rand *rand.Rand
}

var session = &GameSession{
	cat:  locale.New(locale.Default),
	rand: rand.New(rand.NewSource(time.Now().UnixNano())),
}

func (s *GameSession) state() string {
	return viewmodel.NewGameJSON(s.game, s.cat)
}

// NewGame は難易度を指定して新しいゲームを始めます。空なら今の難易度で作り直します
func (s *GameSession) NewGame(name string) string {
	d := game.Easy
	if s.game != nil {
		d = s.game.Difficulty()
	}
	if name != "" {
		parsed, err := game.ParseDifficulty(name)
		if err != nil {
			return errorJSON(err)
		}
		d = parsed
	}
	g, err := game.New(d, game.WithRand(s.rand))
	if err != nil {
		return errorJSON(err)
	}
	s.game = g
	return s.state()
}

// SetDifficulty は難易度を変えます。不正な名前なら今のゲームのまま
func (s *GameSession) SetDifficulty(name string) string {
	d, err := game.ParseDifficulty(name)
	if err != nil {
		return errorJSON(err)
	}
	if s.game == nil {
		return s.NewGame(name)
	}
	if err := s.game.SetDifficulty(d); err != nil {
		return errorJSON(err)
	}
	return s.state()
}

func (s *GameSession) Open(row, col int) string {
	if s.game == nil {
		return ""
	}
	s.game.Reveal(row, col)
	return s.state()
}

func (s *GameSession) ToggleFlag(row, col int) string {
	if s.game == nil {
		return ""
	}
	s.game.ToggleFlag(row, col)
	return s.state()
}

// BotStep はBotに1手進めさせます
func (s *GameSession) BotStep() string {
	if s.game == nil || s.game.Status() != game.Playing {
		return ""
	}
	solver.Step(s.game, s.rand)
	return s.state()
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

func newGameWrapper(this js.Value, args []js.Value) interface{} {
	return session.NewGame(stringArg(args, 0))
}

func setDifficultyWrapper(this js.Value, args []js.Value) interface{} {
	return session.SetDifficulty(stringArg(args, 0))
}

func openCellWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	return session.Open(args[0].Int(), args[1].Int())
}

func toggleFlagWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	return session.ToggleFlag(args[0].Int(), args[1].Int())
}

func botStepWrapper(this js.Value, args []js.Value) interface{} {
	return session.BotStep()
}

func stateWrapper(this js.Value, args []js.Value) interface{} {
	return session.state()
}

func setLangWrapper(this js.Value, args []js.Value) interface{} {
	session.cat = locale.New(stringArg(args, 0))
	return session.state()
}

func main() {
	c := make(chan struct{})

	js.Global().Set("goNewGame", js.FuncOf(newGameWrapper))
	js.Global().Set("goSetDifficulty", js.FuncOf(setDifficultyWrapper))
	js.Global().Set("goOpenCell", js.FuncOf(openCellWrapper))
	js.Global().Set("goToggleFlag", js.FuncOf(toggleFlagWrapper))
	js.Global().Set("goBotStep", js.FuncOf(botStepWrapper))
	js.Global().Set("goState", js.FuncOf(stateWrapper))
	js.Global().Set("goSetLang", js.FuncOf(setLangWrapper))

	println("Go WebAssembly Initialized")
	<-c
}
