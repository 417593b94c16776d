package main

import (
	"encoding/csv"
	"flag"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"minesweeper/game"
	"minesweeper/solver"
)

func main() {
	games := flag.Int("games", 1000, "games per difficulty")
	difficulties := flag.String("difficulty", "easy,medium,hard", "comma separated difficulties")
	out := flag.String("out", "selfplay.csv", "output CSV (- for stdout)")
	seed := flag.Int64("seed", 0, "random seed (0: current time)")
	levelStr := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(*levelStr); err == nil {
		log.SetLevel(lvl)
	}

	var ds []game.Difficulty
	for _, name := range strings.Split(*difficulties, ",") {
		d, err := game.ParseDifficulty(name)
		if err != nil {
			log.WithError(err).Fatal("config")
		}
		ds = append(ds, d)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.WithError(err).Fatal("create output")
		}
		defer f.Close()
		w = f
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))

	if err := run(w, log, ds, *games, r); err != nil {
		log.WithError(err).Fatal("selfplay")
	}
	log.WithField("out", *out).Info("done")
}

// run は難易度ごとに n ゲーム打ち、1ゲーム1行で書き出します
func run(w io.Writer, log logrus.FieldLogger, ds []game.Difficulty, n int, r *rand.Rand) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"difficulty", "won", "moves", "guesses", "elapsed_ms"}); err != nil {
		return err
	}

	for _, d := range ds {
		wins := 0
		for i := 0; i < n; i++ {
			g, err := game.New(d, game.WithRand(r))
			if err != nil {
				return err
			}
			st := solver.Play(g, r)
			if st.Won {
				wins++
			}
			err = cw.Write([]string{
				d.Name,
				strconv.FormatBool(st.Won),
				strconv.Itoa(st.Moves),
				strconv.Itoa(st.Guesses),
				strconv.FormatInt(g.Elapsed().Milliseconds(), 10),
			})
			if err != nil {
				return err
			}
		}
		log.WithFields(logrus.Fields{
			"difficulty": d.Name,
			"games":      n,
			"wins":       wins,
		}).Info("finished")
	}
	cw.Flush()
	return cw.Error()
}
