package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter はIPごとのトークンバケットです
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*bucket
	rate     int           // interval ごとに補充するトークン数
	interval time.Duration // 補充間隔
	now      func() time.Time
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		now:      now,
	}
}

// allow はリクエストを通してよいかを返します。rate が 0 なら常に通します
func (rl *rateLimiter) allow(ip string) bool {
	if rl.rate <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &bucket{tokens: rl.rate - 1, lastSeen: now}
		return true
	}

	refill := int(now.Sub(b.lastSeen) / rl.interval)
	if refill > 0 {
		b.tokens = min(b.tokens+refill*rl.rate, rl.rate)
		b.lastSeen = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep は cutoff より前から来ていないIPを忘れます
func (rl *rateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.visitors {
		if b.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// clientIP はポートを除いた接続元です
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
