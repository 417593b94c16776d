// Package timer は一定間隔で関数を呼ぶ、止められるタイマーです
package timer

import (
	"context"
	"sync"
	"time"
)

// Ticker は Start から Stop まで interval ごとに関数を呼びます
// Stop が戻った後に関数が呼ばれることはありません
type Ticker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start はタイマーを開始します。すでに動いていれば何もせず false を返します
// ctx が終わった場合も止まります
func (t *Ticker) Start(ctx context.Context, interval time.Duration, fn func(now time.Time)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer func() {
			// 親の ctx で止まった場合はここで片付ける
			t.mu.Lock()
			if t.done == done {
				t.cancel, t.done = nil, nil
			}
			t.mu.Unlock()
			cancel()
			close(done)
		}()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				// Stop と同時に来たティックは捨てる
				if ctx.Err() != nil {
					return
				}
				fn(now)
			}
		}
	}()
	return true
}

// Stop はタイマーを止め、実行中の関数が終わるまで待ちます
// 動いていなければ何もしません
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running はタイマーが動いているかを返します
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
