// Package locale は画面に出す文言を言語ごとに返します
package locale

import (
	"embed"
	"fmt"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed po/*.po
var poFS embed.FS

// Default は未知の言語が指定されたときに使う言語です
const Default = "en"

// 文言のキー
const (
	Title          = "TITLE"
	BannerWon      = "BANNER_WON"
	BannerLost     = "BANNER_LOST"
	StatusPlaying  = "STATUS_PLAYING"
	StatusWon      = "STATUS_WON"
	StatusLost     = "STATUS_LOST"
	LabelMines     = "LABEL_MINES"
	LabelTime      = "LABEL_TIME"
	Seconds        = "SECONDS"
	Reset          = "RESET"
	Help           = "HELP"
	HelpKeys       = "HELP_KEYS"
	Hint           = "HINT"
	HintFlag       = "HINT_FLAG"
	difficultyBase = "DIFFICULTY_"
)

var languages = []string{"en", "ja"}

// Catalog は1つの言語の文言集です
type Catalog struct {
	lang string
	po   *gotext.Po
}

// Languages は利用できる言語を返します
func Languages() []string {
	out := make([]string, len(languages))
	copy(out, languages)
	return out
}

// Normalize は "ja_JP.UTF-8" のような指定を "ja" に揃えます
// 未対応なら Default を返します
func Normalize(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(l, "_-."); i >= 0 {
		l = l[:i]
	}
	for _, known := range languages {
		if l == known {
			return known
		}
	}
	return Default
}

// New は指定された言語の Catalog を返します
func New(lang string) *Catalog {
	lang = Normalize(lang)
	c, err := load(lang)
	if err != nil {
		// 埋め込みファイルが読めないのはビルドの誤り
		panic(err)
	}
	return c
}

func load(lang string) (*Catalog, error) {
	data, err := poFS.ReadFile("po/" + lang + ".po")
	if err != nil {
		return nil, fmt.Errorf("read %s catalog: %w", lang, err)
	}
	po := gotext.NewPo()
	po.Parse(data)
	return &Catalog{lang: lang, po: po}, nil
}

// Lang はこの Catalog の言語を返します
func (c *Catalog) Lang() string { return c.lang }

// Text はキーに対応する文言を返します
// 翻訳がなければキーをそのまま返します
func (c *Catalog) Text(key string) string {
	return c.po.Get(key)
}

// Textf はキーに対応する文言を書式として args を埋め込みます
func (c *Catalog) Textf(key string, args ...any) string {
	return fmt.Sprintf(c.po.Get(key), args...)
}

// Difficulty は難易度名の表示文言を返します
func (c *Catalog) Difficulty(name string) string {
	return c.Text(difficultyBase + strings.ToUpper(name))
}
