package chat

import (
	"fmt"
	"regexp"
	"time"
)

const (
	roomIDLength   = 5
	maxUsernameLen = 50
)

var roomIDPattern = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9]{%d}$`, roomIDLength))

// Conn is the transport handle the boundary hands to the service. Writes
// must be safe for concurrent use; Alive reports whether the connection is
// still usable (a stale room entry is one whose Conn is no longer alive).
type Conn interface {
	WriteJSON(v any) error
	Close() error
	Alive() bool
}

// Session is the server-side state of one live connection. The service owns
// it exclusively; the boundary only sees the ID and the join-time peer list.
type Session struct {
	ID     string
	Name   string
	RoomID string

	conn    Conn
	lastMsg time.Time // zero until the first accepted message
	typing  bool
}

// SendStatus is the outcome of Send.
type SendStatus int

const (
	Accepted SendStatus = iota
	RateLimited
	Dropped
)

type SendResult struct {
	Status SendStatus
	// RetryAfter is the whole seconds left on the cooldown, set only when
	// Status is RateLimited. Always >= 1.
	RetryAfter int
}

// Message is an accepted chat message on its way to a room.
type Message struct {
	Username  string
	RoomID    string
	Content   string
	Timestamp time.Time
	ID        string
}

func newMessageID(roomID string, ts time.Time, username string) string {
	return fmt.Sprintf("%s:%d:%s", roomID, ts.UnixNano(), username)
}
