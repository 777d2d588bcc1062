package chat

import (
	"sync"

	"go.uber.org/zap"
)

// broadcast fans event out to every recipient concurrently and returns once
// all attempts have finished. A failed write is logged and swallowed; the
// connection's own read loop is the only thing that triggers cleanup.
func (svc *chatService) broadcast(recipients []*Session, event any) {
	if len(recipients) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range recipients {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.conn.WriteJSON(event); err != nil {
				zap.L().Debug("chat.broadcast_failed",
					zap.String("username", s.Name),
					zap.String("room", s.RoomID),
					zap.Error(err),
				)
			}
		}(s)
	}
	wg.Wait()
}

// deliverBatch pushes one tick's worth of a room's messages as a single
// "messages" event. Recipients are resolved at flush time; a room that
// emptied since enqueue is simply skipped.
func (svc *chatService) deliverBatch(roomID string, msgs []Message) {
	svc.mu.Lock()
	r, ok := svc.rooms[roomID]
	if !ok {
		svc.mu.Unlock()
		return
	}
	recipients := r.snapshot("")
	svc.mu.Unlock()

	events := make([]MessageEvent, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, m.event())
	}
	svc.broadcast(recipients, MessagesEvent{Type: EventMessages, Messages: events})
}
