package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPreset は盤面サイズと地雷数の組み合わせが不正な場合のエラーです
	ErrInvalidPreset = errors.New("invalid difficulty preset")
	// ErrUnknownDifficulty は存在しない難易度名が指定された場合のエラーです
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// Difficulty は盤面サイズと地雷数の組です
type Difficulty struct {
	Name  string `json:"name"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Mines int    `json:"mines"`
}

var (
	Easy   = Difficulty{Name: "easy", Rows: 9, Cols: 9, Mines: 10}
	Medium = Difficulty{Name: "medium", Rows: 16, Cols: 16, Mines: 40}
	Hard   = Difficulty{Name: "hard", Rows: 16, Cols: 30, Mines: 99}
)

var presets = []Difficulty{Easy, Medium, Hard}

func init() {
	for _, d := range presets {
		if err := d.Validate(); err != nil {
			panic(err)
		}
	}
}

// Difficulties は選択できる難易度を易しい順に返します
func Difficulties() []Difficulty {
	out := make([]Difficulty, len(presets))
	copy(out, presets)
	return out
}

// ParseDifficulty は名前から難易度を返します（大文字小文字は区別しない）
func ParseDifficulty(name string) (Difficulty, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, d := range presets {
		if d.Name == key {
			return d, nil
		}
	}
	return Difficulty{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, name)
}

// Validate は地雷数がマス数未満であることを確認します
func (d Difficulty) Validate() error {
	if d.Rows <= 0 || d.Cols <= 0 {
		return fmt.Errorf("%w: %s has %dx%d cells", ErrInvalidPreset, d.Name, d.Rows, d.Cols)
	}
	if d.Mines < 0 || d.Mines >= d.Rows*d.Cols {
		return fmt.Errorf("%w: %s has %d mines on %d cells", ErrInvalidPreset, d.Name, d.Mines, d.Rows*d.Cols)
	}
	return nil
}

func (d Difficulty) String() string {
	return fmt.Sprintf("%s (%dx%d, %d mines)", d.Name, d.Rows, d.Cols, d.Mines)
}
