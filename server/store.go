package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"minesweeper/game"
	"minesweeper/locale"
	"minesweeper/timer"
)

// Session は1人分のゲームです
// game と ticker の操作は mu を取ってから行います
type Session struct {
	ID string

	mu     sync.Mutex
	game   *game.Game
	cat    *locale.Catalog
	ticker timer.Ticker
	closed bool // ストアから外された

	lastSeen atomic.Int64 // UnixNano
}

func newSession(g *game.Game, cat *locale.Catalog, now time.Time) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		game: g,
		cat:  cat,
	}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen は最後に操作された時刻です
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// stop はタイマーを止め、以後動かないようにします
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ticker.Stop()
}

// Store はメモリ上のセッション一覧です
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Add はセッションを登録します
func (s *Store) Add(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// Get は ID のセッションを返します。なければ nil
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete はセッションを取り除いて返します。なければ nil
func (s *Store) Delete(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	return sess
}

// Expired は cutoff より前から操作のないセッションを取り除いて返します
// keep が true を返すセッションは残します
func (s *Store) Expired(cutoff time.Time, keep func(id string) bool) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Session
	for id, sess := range s.sessions {
		if !sess.LastSeen().Before(cutoff) {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(s.sessions, id)
		out = append(out, sess)
	}
	return out
}

// Drain はすべてのセッションを取り除いて返します
func (s *Store) Drain() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.sessions = make(map[string]*Session)
	return out
}

// Len は登録中のセッション数です
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
