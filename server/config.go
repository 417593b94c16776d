package server

import (
	"time"

	"minesweeper/game"
	"minesweeper/locale"
)

// Config はサーバーの設定です
type Config struct {
	Difficulty   game.Difficulty // 難易度の指定がないときの盤面
	Lang         string          // 言語の指定がないときの文言
	TickInterval time.Duration   // 経過時間を送る間隔
	SessionTTL   time.Duration   // 操作のないセッションを消すまでの時間
	ReapInterval time.Duration   // 古いセッションを探す間隔
	MoveRate     int             // 1秒あたりの操作回数（IPごと）。0 で無制限

	// GameOptions は新しいゲームを作るときに渡されます（テスト用）
	GameOptions []game.Option
	// Now は現在時刻です。ゲームの時計にも使います。nil なら time.Now
	Now func() time.Time
}

// DefaultConfig は既定の設定を返します
func DefaultConfig() Config {
	return Config{
		Difficulty:   game.Easy,
		Lang:         locale.Default,
		TickInterval: time.Second,
		SessionTTL:   30 * time.Minute,
		ReapInterval: time.Minute,
		MoveRate:     30,
	}
}

// withDefaults は空の項目を既定値で埋めます
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Difficulty == (game.Difficulty{}) {
		c.Difficulty = d.Difficulty
	}
	if c.Lang == "" {
		c.Lang = d.Lang
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = d.ReapInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
