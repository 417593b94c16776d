package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/schema"
	"github.com/sirupsen/logrus"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/solver"
	"minesweeper/viewmodel"
)

var ErrClosed = errors.New("server: closed")

// Server はセッションごとのゲームとHTTPハンドラを管理します
type Server struct {
	mux     *http.ServeMux
	cfg     Config
	log     logrus.FieldLogger
	store   *Store
	sse     *Broadcaster
	moveRL  *rateLimiter
	decoder *schema.Decoder

	// ctx はタイマーと掃除の親です。Close で終わります
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New はサーバーを作り、古いセッションの掃除を始めます
// 使い終わったら Close を呼んでください
func New(cfg Config, log logrus.FieldLogger) *Server {
	cfg = cfg.withDefaults()
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		log:     log,
		store:   NewStore(),
		sse:     NewBroadcaster(),
		moveRL:  newRateLimiter(cfg.MoveRate, time.Second, cfg.Now),
		decoder: decoder,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.routes()
	go s.reapLoop()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/games", s.handleCreate)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /api/games/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/games/{id}/reveal", s.handleReveal)
	s.mux.HandleFunc("POST /api/games/{id}/flag", s.handleFlag)
	s.mux.HandleFunc("POST /api/games/{id}/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/games/{id}/difficulty", s.handleDifficulty)
	s.mux.HandleFunc("GET /api/games/{id}/hint", s.handleHint)
	s.mux.HandleFunc("GET /api/games/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/difficulties", s.handleDifficulties)
}

// Handle は API 以外のパスにハンドラを追加します（静的ファイルなど）
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	s.mux.ServeHTTP(w, r)
}

// Close はすべてのタイマーと接続を止め、セッションを捨てます
func (s *Server) Close() error {
	select {
	case <-s.ctx.Done():
		return ErrClosed
	default:
	}
	s.cancel()
	<-s.done
	for _, sess := range s.store.Drain() {
		s.teardown(sess)
	}
	return nil
}

// Sessions は登録中のセッション数です
func (s *Server) Sessions() int { return s.store.Len() }

// --- クエリ ---

type createQuery struct {
	Difficulty string `schema:"difficulty"`
	Lang       string `schema:"lang"`
}

type cellQuery struct {
	Row int `schema:"row,required"`
	Col int `schema:"col,required"`
}

type difficultyQuery struct {
	Difficulty string `schema:"difficulty,required"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := s.decoder.Decode(dst, r.URL.Query()); err != nil {
		jsonError(w, "invalid query: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// --- ハンドラ ---

// POST /api/games
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.moveRL.allow(clientIP(r)) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	var q createQuery
	if !s.decode(w, r, &q) {
		return
	}

	d := s.cfg.Difficulty
	if q.Difficulty != "" {
		var err error
		if d, err = game.ParseDifficulty(q.Difficulty); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	lang := q.Lang
	if lang == "" {
		lang = s.cfg.Lang
	}

	opts := append([]game.Option{game.WithClock(s.cfg.Now)}, s.cfg.GameOptions...)
	g, err := game.New(d, opts...)
	if err != nil {
		s.log.WithError(err).WithField("difficulty", d.Name).Error("new game")
		jsonError(w, "could not create game", http.StatusInternalServerError)
		return
	}
	sess := newSession(g, locale.New(lang), s.cfg.Now())
	s.store.Add(sess)
	s.log.WithFields(logrus.Fields{
		"session":    sess.ID,
		"difficulty": d.Name,
		"lang":       sess.cat.Lang(),
	}).Info("session created")

	sess.mu.Lock()
	view := s.view(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusCreated, view)
}

// GET /api/games/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	view := s.view(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

// DELETE /api/games/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Delete(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}
	s.teardown(sess)
	s.log.WithField("session", sess.ID).Info("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/games/{id}/reveal?row=&col=
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	s.handleCell(w, r, (*game.Game).Reveal)
}

// POST /api/games/{id}/flag?row=&col=
func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	s.handleCell(w, r, (*game.Game).ToggleFlag)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request, action func(*game.Game, int, int) game.Result) {
	if !s.moveRL.allow(clientIP(r)) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var q cellQuery
	if !s.decode(w, r, &q) {
		return
	}

	sess.mu.Lock()
	res := action(sess.game, q.Row, q.Col)
	s.syncTicker(sess)
	view := s.view(sess)
	sess.mu.Unlock()

	if res.Changed() {
		log := s.log.WithFields(logrus.Fields{
			"session": sess.ID,
			"row":     q.Row,
			"col":     q.Col,
			"outcome": res.Outcome.String(),
			"opened":  res.Opened,
		})
		log.Debug("move")
		if res.Outcome == game.Exploded || res.Outcome == game.Cleared {
			log.WithField("elapsed", view.Elapsed).Info("game over")
		}
		s.broadcastState(sess.ID, view)
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/games/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.moveRL.allow(clientIP(r)) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	// 古いタイマーを止めてから盤面を作り直す
	sess.ticker.Stop()
	err := sess.game.NewGame()
	s.syncTicker(sess)
	view := s.view(sess)
	sess.mu.Unlock()

	if err != nil {
		s.log.WithError(err).WithField("session", sess.ID).Error("reset")
		jsonError(w, "could not reset game", http.StatusInternalServerError)
		return
	}
	s.broadcastState(sess.ID, view)
	writeJSON(w, http.StatusOK, view)
}

// POST /api/games/{id}/difficulty?difficulty=
func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	if !s.moveRL.allow(clientIP(r)) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var q difficultyQuery
	if !s.decode(w, r, &q) {
		return
	}
	d, err := game.ParseDifficulty(q.Difficulty)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	sess.ticker.Stop()
	err = sess.game.SetDifficulty(d)
	s.syncTicker(sess)
	view := s.view(sess)
	sess.mu.Unlock()

	if err != nil {
		// 今のゲームはそのまま
		s.log.WithError(err).WithField("session", sess.ID).Warn("set difficulty")
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.WithFields(logrus.Fields{"session": sess.ID, "difficulty": d.Name}).Info("difficulty changed")
	s.broadcastState(sess.ID, view)
	writeJSON(w, http.StatusOK, view)
}

type hintResponse struct {
	Move *solver.Move `json:"move"`
	Text string       `json:"text,omitempty"`
}

// GET /api/games/{id}/hint
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var resp hintResponse
	sess.mu.Lock()
	if sess.game.Status() == game.Playing {
		resp.Move = solver.New(sess.game, nil).NextMove()
	}
	if resp.Move != nil {
		resp.Text = viewmodel.HintText(sess.cat, resp.Move)
	}
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/games/{id}/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	s.sse.ServeSSE(w, r, sess.ID, func(c *client) {
		sess.mu.Lock()
		view := s.view(sess)
		sess.mu.Unlock()
		s.sse.Send(c, stateEvent(view))
	})
}

// GET /api/difficulties
func (s *Server) handleDifficulties(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, game.Difficulties())
}

// --- 補助 ---

// session はパスの ID からセッションを探します。なければ 404 を返して nil
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	sess := s.store.Get(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return nil
	}
	sess.touch(s.cfg.Now())
	return sess
}

// view は sess.mu を持った状態で呼びます
func (s *Server) view(sess *Session) viewmodel.GameView {
	v := viewmodel.NewGameView(sess.game, sess.cat)
	v.ID = sess.ID
	return v
}

// syncTicker はゲームの状態に合わせてタイマーを動かすか止めます
// sess.mu を持った状態で呼びます。tick の中では sess.mu を取りません
func (s *Server) syncTicker(sess *Session) {
	if sess.closed || !sess.game.Running() {
		sess.ticker.Stop()
		return
	}
	id, started := sess.ID, sess.game.StartedAt()
	// 経過時間はゲームと同じ cfg.Now で測る
	sess.ticker.Start(s.ctx, s.cfg.TickInterval, func(time.Time) {
		s.sse.Broadcast(id, tickEvent(int(s.cfg.Now().Sub(started)/time.Second)))
	})
}

// teardown はストアから外したセッションを片付けます
func (s *Server) teardown(sess *Session) {
	sess.stop()
	s.sse.Close(sess.ID)
}

func (s *Server) reapLoop() {
	defer close(s.done)
	t := time.NewTicker(s.cfg.ReapInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.reap(s.cfg.Now())
		}
	}
}

// reap は接続がなく TTL を過ぎたセッションを消します
func (s *Server) reap(now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionTTL)
	expired := s.store.Expired(cutoff, func(id string) bool {
		return s.sse.ClientCount(id) > 0
	})
	for _, sess := range expired {
		s.teardown(sess)
		s.log.WithField("session", sess.ID).Info("session expired")
	}
	s.moveRL.sweep(cutoff)
	return len(expired)
}

type event struct {
	Type    string              `json:"type"`
	Game    *viewmodel.GameView `json:"game,omitempty"`
	Elapsed *int                `json:"elapsed,omitempty"`
}

func stateEvent(v viewmodel.GameView) string {
	data, _ := json.Marshal(event{Type: "state", Game: &v})
	return string(data)
}

func tickEvent(elapsed int) string {
	data, _ := json.Marshal(event{Type: "tick", Elapsed: &elapsed})
	return string(data)
}

func (s *Server) broadcastState(id string, v viewmodel.GameView) {
	s.sse.Broadcast(id, stateEvent(v))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
