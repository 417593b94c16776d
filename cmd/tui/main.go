package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/tui"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	difficulty := flag.String("difficulty", envOr("MINESWEEPER_DIFFICULTY", game.Easy.Name), "easy|medium|hard")
	lang := flag.String("lang", envOr("MINESWEEPER_LANG", locale.Normalize(os.Getenv("LANG"))), "en|ja")
	levelStr := flag.String("log-level", envOr("MINESWEEPER_LOG_LEVEL", "info"), "debug|info|warn|error")
	logFile := flag.String("log-file", "", "write logs to this file (the terminal is used by the game)")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(io.Discard)
	if lvl, err := logrus.ParseLevel(*levelStr); err == nil {
		log.SetLevel(lvl)
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	d, err := game.ParseDifficulty(*difficulty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	m, err := tui.New(d, locale.New(*lang), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{"difficulty": d.Name, "lang": *lang}).Info("start")

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		log.WithError(err).Error("tui")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
