package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// batcher buffers accepted messages and flushes them in groups of up to
// `size` on every tick, one MessagesEvent per room per flush. It is the
// delivery path only when batched delivery is switched on; a message never
// travels both the inline and the batched path.
//
// All delivery runs on the single run goroutine: a full buffer signals it
// via flushNow rather than flushing from the sender's goroutine, so batches
// leave in the exact order their messages were enqueued.
type batcher struct {
	mu  sync.Mutex
	buf []Message

	size     int
	interval time.Duration
	deliver  func(roomID string, msgs []Message)

	flushNow chan struct{}
	quit     chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
}

func newBatcher(size int, interval time.Duration, deliver func(string, []Message)) *batcher {
	return &batcher{
		size:     size,
		interval: interval,
		deliver:  deliver,
		flushNow: make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start launches the flush loop. Extra calls are no-ops.
func (b *batcher) start() {
	b.startOnce.Do(func() {
		b.running.Store(true)
		go b.run()
	})
}

// stop drains the buffer, stops the loop and waits for it to exit. Safe to
// call more than once, and without a prior start.
func (b *batcher) stop() {
	b.stopOnce.Do(func() {
		close(b.quit)
		if b.running.Load() {
			<-b.done
		}
	})
}

func (b *batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushOnce()
		case <-b.flushNow:
			b.flushOnce()
		case <-b.quit:
			// Final drain so shutdown loses nothing already accepted.
			for b.flushOnce() {
			}
			zap.L().Debug("chat.batcher_stopped")
			return
		}
	}
}

func (b *batcher) enqueue(m Message) {
	b.mu.Lock()
	b.buf = append(b.buf, m)
	full := len(b.buf) >= b.size
	b.mu.Unlock()

	// Don't sit on a full batch until the next tick. The signal is merely
	// a wake-up; the run goroutine does the flushing.
	if full {
		select {
		case b.flushNow <- struct{}{}:
		default:
		}
	}
}

// flushOnce takes up to `size` buffered messages, groups them by room and
// delivers one grouped event per room. Reports whether anything was sent.
// Only the run goroutine calls it.
func (b *batcher) flushOnce() bool {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return false
	}
	n := b.size
	if n > len(b.buf) {
		n = len(b.buf)
	}
	batch := b.buf[:n:n]
	b.buf = b.buf[n:]
	b.mu.Unlock()

	byRoom := make(map[string][]Message)
	order := make([]string, 0, 1)
	for _, m := range batch {
		if _, ok := byRoom[m.RoomID]; !ok {
			order = append(order, m.RoomID)
		}
		byRoom[m.RoomID] = append(byRoom[m.RoomID], m)
	}
	for _, roomID := range order {
		b.deliver(roomID, byRoom[roomID])
	}
	return true
}
