package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// client は1本のSSE接続です
type client struct {
	ch     chan string
	gameID string
}

// Broadcaster はセッションごとにSSE接続をまとめます
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
	}
}

// Register はセッションに接続を追加します
func (b *Broadcaster) Register(gameID string) *client {
	c := &client{
		ch:     make(chan string, sseChannelBuffer),
		gameID: gameID,
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister は接続を取り除き、チャネルを閉じます
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	b.remove(c)
	b.mu.Unlock()
}

func (b *Broadcaster) remove(c *client) {
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
}

// Close はセッションの接続をすべて切ります
func (b *Broadcaster) Close(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if c.gameID == gameID {
			b.remove(c)
		}
	}
}

// Broadcast はセッションの全接続にメッセージを送ります
// 詰まっている接続には送りません
func (b *Broadcaster) Broadcast(gameID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		if c.gameID == gameID {
			select {
			case c.ch <- data:
			default:
			}
		}
	}
}

// Send は1つの接続にだけメッセージを送ります。閉じた接続には送りません
func (b *Broadcaster) Send(c *client, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.clients[c]; !ok {
		return
	}
	select {
	case c.ch <- data:
	default:
	}
}

// ClientCount はセッションの接続数を返します
func (b *Broadcaster) ClientCount(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients {
		if c.gameID == gameID {
			n++
		}
	}
	return n
}

// ServeSSE はSSE接続を処理します。接続が切れるかセッションが閉じるまで戻りません
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, gameID string, onConnect func(c *client)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := b.Register(gameID)
	defer b.Unregister(c)

	if onConnect != nil {
		onConnect(c)
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
