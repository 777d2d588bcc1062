package chat

import "time"

// At most one live timer exists per (room, name). Every typing=true signal
// restarts the window; stop, send and disconnect cancel it. time.Timer.Stop
// cannot stop a callback already in flight, so each arm bumps a sequence
// number and the callback aborts when its number is no longer current.

type typingKey struct {
	room string
	name string
}

type typingTimer struct {
	t   *time.Timer
	seq uint64
}

// armTypingLocked (re)starts the expiry timer for key. Caller holds svc.mu.
func (svc *chatService) armTypingLocked(key typingKey) {
	if tt, ok := svc.timers[key]; ok {
		tt.t.Stop()
	}
	svc.timerSeq++
	seq := svc.timerSeq
	tt := &typingTimer{seq: seq}
	svc.timers[key] = tt
	tt.t = time.AfterFunc(svc.typingTimeout, func() {
		svc.typingExpired(key, seq)
	})
}

// cancelTypingLocked stops and forgets the timer for key, if any.
func (svc *chatService) cancelTypingLocked(key typingKey) {
	if tt, ok := svc.timers[key]; ok {
		tt.t.Stop()
		delete(svc.timers, key)
	}
}

// typingExpired runs when a typing window lapses with no reset.
func (svc *chatService) typingExpired(key typingKey, seq uint64) {
	svc.mu.Lock()
	tt, ok := svc.timers[key]
	if !ok || tt.seq != seq {
		// Cancelled or replaced while this callback was pending.
		svc.mu.Unlock()
		return
	}
	delete(svc.timers, key)

	r, ok := svc.rooms[key.room]
	if !ok {
		svc.mu.Unlock()
		return
	}
	sessID, ok := r.names[key.name]
	if !ok {
		// Owner already disconnected; nothing to announce.
		svc.mu.Unlock()
		return
	}
	r.sessions[sessID].typing = false
	delete(r.typing, key.name)
	list := r.typingNames()
	recipients := r.snapshot("")
	now := svc.now()
	svc.mu.Unlock()

	svc.broadcast(recipients, TypingEvent{
		Type: EventTyping, Username: key.name, IsTyping: false,
		TypingUsers: list, Timestamp: now,
	})
}
