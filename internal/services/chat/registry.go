package chat

import "sort"

// room tracks one chat room's membership. Rooms exist only while occupied:
// created when the first member joins, dropped from the registry when the
// last one leaves. All access goes through the service mutex.
type room struct {
	names    map[string]string   // display name -> session ID
	sessions map[string]*Session // session ID -> session
	typing   map[string]struct{} // display names currently typing
}

func newRoom() *room {
	return &room{
		names:    make(map[string]string),
		sessions: make(map[string]*Session),
		typing:   make(map[string]struct{}),
	}
}

func (r *room) empty() bool { return len(r.sessions) == 0 }

// snapshot returns the current members minus excludeID. Broadcast I/O runs
// on the snapshot outside the lock, so joins/leaves during fan-out cannot
// change who this call reaches.
func (r *room) snapshot(excludeID string) []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == excludeID {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *room) memberNames() []string {
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *room) typingNames() []string {
	out := make([]string, 0, len(r.typing))
	for name := range r.typing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
