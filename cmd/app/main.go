package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/server"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	port := envOr("PORT", "8080")
	addr := flag.String("addr", "0.0.0.0:"+port, "listen address")
	static := flag.String("static", "static", "directory served at / (html, js, wasm); empty to disable")
	difficulty := flag.String("difficulty", envOr("MINESWEEPER_DIFFICULTY", game.Easy.Name), "default difficulty: easy|medium|hard")
	lang := flag.String("lang", envOr("MINESWEEPER_LANG", locale.Default), "default language: en|ja")
	levelStr := flag.String("log-level", envOr("MINESWEEPER_LOG_LEVEL", "info"), "debug|info|warn|error")
	format := flag.String("log-format", "text", "text|json")
	ttl := flag.Duration("session-ttl", 30*time.Minute, "drop sessions idle for this long")
	rate := flag.Int("move-rate", 30, "moves per second per IP (0: unlimited)")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stdout)
	if *format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(*levelStr)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	d, err := game.ParseDifficulty(*difficulty)
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	cfg := server.DefaultConfig()
	cfg.Difficulty = d
	cfg.Lang = *lang
	cfg.SessionTTL = *ttl
	cfg.MoveRate = *rate

	srv := server.New(cfg, log)
	if *static != "" {
		srv.Handle("GET /", http.FileServer(http.Dir(*static)))
	}

	hs := &http.Server{
		Addr:              *addr,
		Handler:           server.RequestLogger(log, srv),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		log.Info("shutting down")
		// SSE 接続を先に閉じてから待つ
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":       *addr,
		"static":     *static,
		"difficulty": d.Name,
		"lang":       *lang,
	}).Info("listening")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
	<-idle
}
