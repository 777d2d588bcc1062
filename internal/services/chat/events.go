package chat

import "time"

// Outbound event payloads. Field names follow the frontend wire contract.

const (
	EventWelcome   = "welcome"
	EventJoined    = "user_joined"
	EventLeft      = "user_left"
	EventMessage   = "message"
	EventMessages  = "messages"
	EventTyping    = "typing"
	EventRateLimit = "rate_limit"
)

type WelcomeEvent struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	RoomID   string   `json:"group_id"`
	Username string   `json:"username"`
	Users    []string `json:"users"`
}

// PresenceEvent announces a member joining or leaving a room.
type PresenceEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	RoomID    string    `json:"group_id"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
}

// MessagesEvent is the batched variant: every message flushed for one room
// in one tick, in enqueue order.
type MessagesEvent struct {
	Type     string         `json:"type"`
	Messages []MessageEvent `json:"messages"`
}

// TypingEvent carries the full typing-name set of the room, not a delta, so
// any single event is enough to reconstruct the indicator state.
type TypingEvent struct {
	Type        string    `json:"type"`
	Username    string    `json:"username"`
	IsTyping    bool      `json:"is_typing"`
	TypingUsers []string  `json:"typing_users"`
	Timestamp   time.Time `json:"timestamp"`
}

type RateLimitEvent struct {
	Type             string `json:"type"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

func (m Message) event() MessageEvent {
	return MessageEvent{
		Type:      EventMessage,
		Username:  m.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		MessageID: m.ID,
	}
}
