package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/viewmodel"
)

// bottomLayout は一番下の行と (7,8) に地雷を置いた 9x9 の配置です
// (0,0) を開けると安全なマスが全部開きます
var bottomLayout = []game.Pos{
	{8, 0}, {8, 1}, {8, 2}, {8, 3}, {8, 4}, {8, 5}, {8, 6}, {8, 7}, {8, 8},
	{7, 8},
}

func fixedConfig() Config {
	cfg := DefaultConfig()
	cfg.MoveRate = 0
	cfg.GameOptions = []game.Option{game.WithPlacer(game.FixedPlacer(bottomLayout))}
	return cfg
}

// testClock は手で進める時計です。ティックや掃除の goroutine からも読まれます
type testClock struct{ ns atomic.Int64 }

func newTestClock() *testClock {
	c := &testClock{}
	c.ns.Store(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.ns.Load()).UTC() }

func (c *testClock) Add(d time.Duration) { c.ns.Add(int64(d)) }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	srv := New(cfg, nil)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func do(srv http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) viewmodel.GameView {
	t.Helper()
	var v viewmodel.GameView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func createGame(t *testing.T, srv *Server, query string) viewmodel.GameView {
	t.Helper()
	w := do(srv, "POST", "/api/games"+query)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decodeView(t, w)
	require.NotEmpty(t, v.ID)
	return v
}

func TestCreateGame(t *testing.T) {
	srv := newTestServer(t, fixedConfig())

	v := createGame(t, srv, "")
	assert.Equal(t, "easy", v.Difficulty)
	assert.Equal(t, 9, v.Rows)
	assert.Equal(t, 9, v.Cols)
	assert.Equal(t, "playing", v.Status)
	assert.Equal(t, 10, v.MinesRemaining)
	assert.Zero(t, v.Elapsed)
	assert.Equal(t, 1, srv.Sessions())

	ja := createGame(t, srv, "?lang=ja")
	assert.Equal(t, locale.New("ja").Text(locale.StatusPlaying), ja.StatusText)
	assert.NotEqual(t, v.ID, ja.ID)
}

func TestCreateGameQueryErrors(t *testing.T) {
	srv := newTestServer(t, fixedConfig())

	w := do(srv, "POST", "/api/games?difficulty=impossible")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, 0, srv.Sessions())
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, fixedConfig())

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/games/nope"},
		{"POST", "/api/games/nope/reveal?row=0&col=0"},
		{"POST", "/api/games/nope/flag?row=0&col=0"},
		{"POST", "/api/games/nope/reset"},
		{"GET", "/api/games/nope/hint"},
		{"DELETE", "/api/games/nope"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := do(srv, tc.method, tc.path)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestCellQueryErrors(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	for _, q := range []string{"", "?row=1", "?col=1", "?row=x&col=1"} {
		t.Run(q, func(t *testing.T) {
			w := do(srv, "POST", "/api/games/"+id+"/reveal"+q)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRevealStartsTimer(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	w := do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeView(t, w)

	assert.Equal(t, "playing", v.Status)
	assert.Equal(t, viewmodel.StateOpened, v.Cells[7][0].State)
	assert.Equal(t, 2, v.Cells[7][0].Count)
	assert.Equal(t, viewmodel.StateHidden, v.Cells[0][0].State)
	assert.True(t, srv.store.Get(id).ticker.Running())
}

func TestRevealAllSafeWins(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	v := decodeView(t, do(srv, "POST", "/api/games/"+id+"/reveal?row=0&col=0"))
	assert.Equal(t, "won", v.Status)
	assert.True(t, v.IsGameClear)
	assert.Equal(t, viewmodel.FaceHappy, v.Face)
	assert.Equal(t, 10, v.MinesRemaining)
	assert.NotEmpty(t, v.Banner)
	for _, p := range bottomLayout {
		assert.Equal(t, viewmodel.StateFlagged, v.Cells[p.Row][p.Col].State)
	}
	assert.False(t, srv.store.Get(id).ticker.Running())
}

func TestRevealMineLoses(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	v := decodeView(t, do(srv, "POST", "/api/games/"+id+"/reveal?row=8&col=0"))
	assert.Equal(t, "lost", v.Status)
	assert.True(t, v.IsGameOver)
	assert.Equal(t, viewmodel.FaceDead, v.Face)
	for _, p := range bottomLayout {
		assert.True(t, v.Cells[p.Row][p.Col].IsMine)
	}
	assert.Equal(t, viewmodel.StateHidden, v.Cells[0][0].State)
	assert.False(t, srv.store.Get(id).ticker.Running())

	// 終わったゲームへの操作は無視される
	after := decodeView(t, do(srv, "POST", "/api/games/"+id+"/reveal?row=0&col=0"))
	assert.Equal(t, v, after)
}

func TestFlagToggle(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	v := decodeView(t, do(srv, "POST", "/api/games/"+id+"/flag?row=0&col=0"))
	assert.Equal(t, viewmodel.StateFlagged, v.Cells[0][0].State)
	assert.Equal(t, 9, v.MinesRemaining)

	// フラグのあるマスは開かない
	v = decodeView(t, do(srv, "POST", "/api/games/"+id+"/reveal?row=0&col=0"))
	assert.Equal(t, viewmodel.StateFlagged, v.Cells[0][0].State)
	assert.Equal(t, "playing", v.Status)

	v = decodeView(t, do(srv, "POST", "/api/games/"+id+"/flag?row=0&col=0"))
	assert.Equal(t, viewmodel.StateHidden, v.Cells[0][0].State)
	assert.Equal(t, 10, v.MinesRemaining)
}

func TestResetStopsTimer(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID

	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	require.True(t, srv.store.Get(id).ticker.Running())

	w := do(srv, "POST", "/api/games/"+id+"/reset")
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeView(t, w)
	assert.Equal(t, "playing", v.Status)
	assert.Zero(t, v.Elapsed)
	assert.Equal(t, viewmodel.StateHidden, v.Cells[7][0].State)
	assert.False(t, srv.store.Get(id).ticker.Running())
}

func TestChangeDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveRate = 0
	srv := newTestServer(t, cfg)
	id := createGame(t, srv, "?difficulty=easy").ID

	v := decodeView(t, do(srv, "POST", "/api/games/"+id+"/difficulty?difficulty=Medium"))
	assert.Equal(t, "medium", v.Difficulty)
	assert.Equal(t, 16, v.Rows)
	assert.Equal(t, 16, v.Cols)
	assert.Equal(t, 40, v.MinesRemaining)

	w := do(srv, "POST", "/api/games/"+id+"/difficulty?difficulty=nightmare")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(srv, "POST", "/api/games/"+id+"/difficulty")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	v = decodeView(t, do(srv, "GET", "/api/games/"+id))
	assert.Equal(t, "medium", v.Difficulty)
}

func TestChangeDifficultyFailureKeepsGame(t *testing.T) {
	// 10個の固定配置では Medium の盤面は作れない
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID
	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")

	w := do(srv, "POST", "/api/games/"+id+"/difficulty?difficulty=medium")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	v := decodeView(t, do(srv, "GET", "/api/games/"+id))
	assert.Equal(t, "easy", v.Difficulty)
	assert.Equal(t, viewmodel.StateOpened, v.Cells[7][0].State)
	assert.True(t, srv.store.Get(id).ticker.Running())
}

func TestHint(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID
	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")

	w := do(srv, "GET", "/api/games/"+id+"/hint")
	require.Equal(t, http.StatusOK, w.Code)
	var resp hintResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Move)
	assert.NotEmpty(t, resp.Move.Strategy)
	assert.NotEmpty(t, resp.Text)

	// 終わったゲームにはヒントを出さない
	do(srv, "POST", "/api/games/"+id+"/reveal?row=8&col=8")
	w = do(srv, "GET", "/api/games/"+id+"/hint")
	resp = hintResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Nil(t, resp.Move)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	id := createGame(t, srv, "").ID
	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	sess := srv.store.Get(id)
	require.True(t, sess.ticker.Running())

	w := do(srv, "DELETE", "/api/games/"+id)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, sess.ticker.Running())
	assert.Equal(t, http.StatusNotFound, do(srv, "GET", "/api/games/"+id).Code)
}

func TestReapIdleSessions(t *testing.T) {
	clock := newTestClock()
	cfg := fixedConfig()
	cfg.SessionTTL = time.Minute
	cfg.Now = clock.Now
	srv := newTestServer(t, cfg)

	idle := createGame(t, srv, "").ID
	do(srv, "POST", "/api/games/"+idle+"/reveal?row=7&col=0")
	sess := srv.store.Get(idle)

	clock.Add(30 * time.Second)
	active := createGame(t, srv, "").ID

	assert.Zero(t, srv.reap(clock.Now()))

	clock.Add(45 * time.Second)
	assert.Equal(t, 1, srv.reap(clock.Now()))
	assert.Nil(t, srv.store.Get(idle))
	assert.NotNil(t, srv.store.Get(active))
	assert.False(t, sess.ticker.Running())
}

func TestRateLimit(t *testing.T) {
	clock := newTestClock()
	cfg := fixedConfig()
	cfg.MoveRate = 2
	cfg.Now = clock.Now
	srv := newTestServer(t, cfg)

	createGame(t, srv, "")
	createGame(t, srv, "")
	assert.Equal(t, http.StatusTooManyRequests, do(srv, "POST", "/api/games").Code)

	clock.Add(time.Second)
	createGame(t, srv, "")
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, fixedConfig())
	w := do(srv, "GET", "/api/difficulties")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	var ds []game.Difficulty
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ds))
	assert.Equal(t, game.Difficulties(), ds)
}

// subscribe は id のイベントストリームを開き、届いたイベントを流します
// ストリームが閉じるとチャネルも閉じます
func subscribe(t *testing.T, ts *httptest.Server, id string) <-chan event {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/games/" + id + "/events")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan event, 64)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var e event
			if json.Unmarshal([]byte(data), &e) == nil {
				events <- e
			}
		}
	}()
	return events
}

// nextEvent は typ のイベントが来るまで待ちます
func nextEvent(t *testing.T, events <-chan event, typ string) event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "stream closed")
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestEventsStream(t *testing.T) {
	cfg := fixedConfig()
	cfg.TickInterval = 10 * time.Millisecond
	srv := newTestServer(t, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	id := createGame(t, srv, "").ID
	events := subscribe(t, ts, id)
	next := func(typ string) event { return nextEvent(t, events, typ) }

	first := next("state")
	require.NotNil(t, first.Game)
	assert.Equal(t, id, first.Game.ID)

	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	moved := next("state")
	assert.Equal(t, viewmodel.StateOpened, moved.Game.Cells[7][0].State)

	tick := next("tick")
	require.NotNil(t, tick.Elapsed)
	assert.GreaterOrEqual(t, *tick.Elapsed, 0)

	// セッションを消すとストリームも閉じる
	do(srv, "DELETE", "/api/games/"+id)
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCloseStopsEverything(t *testing.T) {
	srv := New(fixedConfig(), nil)
	id := createGame(t, srv, "").ID
	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	sess := srv.store.Get(id)

	require.NoError(t, srv.Close())
	assert.False(t, sess.ticker.Running())
	assert.Zero(t, srv.Sessions())
	assert.ErrorIs(t, srv.Close(), ErrClosed)
}

func TestTickUsesConfigClock(t *testing.T) {
	clock := newTestClock()
	cfg := fixedConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Now = clock.Now
	srv := newTestServer(t, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	id := createGame(t, srv, "").ID
	events := subscribe(t, ts, id)
	nextEvent(t, events, "state")

	do(srv, "POST", "/api/games/"+id+"/reveal?row=7&col=0")
	clock.Add(7 * time.Second)

	v := decodeView(t, do(srv, "GET", "/api/games/"+id))
	assert.Equal(t, 7, v.Elapsed)

	// 時計を進める前のティックは 0 秒のまま。壁時計の経過は混ざらない
	for {
		tick := nextEvent(t, events, "tick")
		require.NotNil(t, tick.Elapsed)
		if *tick.Elapsed == 7 {
			break
		}
		require.Zero(t, *tick.Elapsed)
	}
}
