package chat

import (
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidRoomID   = errors.New("room id must be 5 alphanumeric characters")
	ErrInvalidUsername = errors.New("username must be 1-50 characters")
	ErrNameTaken       = errors.New("username already taken in this room")
)

type IChatService interface {
	// Connect registers the connection in roomID under username. It returns
	// the new session and the display names already present in the room.
	// On error the caller must close the connection with the error text as
	// the policy-violation reason.
	Connect(conn Conn, username, roomID string) (*Session, []string, error)

	// Disconnect tears down the session and everything it owns. Idempotent;
	// safe to call from every failure path.
	Disconnect(sessionID string)

	// Send accepts, rate-limits or drops a chat message from the session.
	Send(sessionID, text string) SendResult

	// SetTyping drives the session's typing-indicator state.
	SetTyping(sessionID string, typing bool)

	// Members returns the sorted display names currently in roomID.
	Members(roomID string) []string

	// Start launches the periodic batch flusher. Call exactly once at boot.
	Start()
	// Stop drains the flusher and waits for it to exit.
	Stop()
}

type Options struct {
	MessageCooldown time.Duration // min gap between accepted messages, default 5s
	TypingTimeout   time.Duration // typing-indicator expiry, default 3s
	BatchSize       int           // max messages per flush, default 10
	BatchInterval   time.Duration // flush tick, default 50ms
	BatchedDelivery bool          // route messages through the batcher instead of inline fan-out
}

type chatService struct {
	mu       sync.Mutex
	rooms    map[string]*room
	sessions map[string]*Session
	timers   map[typingKey]*typingTimer
	timerSeq uint64

	batcher *batcher
	batched bool

	cooldown      time.Duration
	typingTimeout time.Duration

	now func() time.Time
}

func NewChatService(opts Options) IChatService {
	if opts.MessageCooldown <= 0 {
		opts.MessageCooldown = 5 * time.Second
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = 3 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = 50 * time.Millisecond
	}

	svc := &chatService{
		rooms:         make(map[string]*room),
		sessions:      make(map[string]*Session),
		timers:        make(map[typingKey]*typingTimer),
		batched:       opts.BatchedDelivery,
		cooldown:      opts.MessageCooldown,
		typingTimeout: opts.TypingTimeout,
		now:           time.Now,
	}
	svc.batcher = newBatcher(opts.BatchSize, opts.BatchInterval, svc.deliverBatch)
	return svc
}

func (svc *chatService) Start() { svc.batcher.start() }
func (svc *chatService) Stop()  { svc.batcher.stop() }

func (svc *chatService) Connect(conn Conn, username, roomID string) (*Session, []string, error) {
	username = strings.TrimSpace(username)
	if !roomIDPattern.MatchString(roomID) {
		return nil, nil, ErrInvalidRoomID
	}
	if username == "" || len(username) > maxUsernameLen {
		return nil, nil, ErrInvalidUsername
	}

	svc.mu.Lock()

	var stale *Session
	var staleRemaining []*Session
	if r, ok := svc.rooms[roomID]; ok {
		if holderID, taken := r.names[username]; taken {
			holder := r.sessions[holderID]
			if holder.conn.Alive() {
				svc.mu.Unlock()
				return nil, nil, ErrNameTaken
			}
			// The previous owner's connection is dead but its disconnect has
			// not been observed yet. Evict it before taking the name over.
			stale = holder
			staleRemaining = svc.removeLocked(holder)
		}
	}

	r, ok := svc.rooms[roomID]
	if !ok {
		r = newRoom()
		svc.rooms[roomID] = r
	}

	sess := &Session{
		ID:     uuid.NewString(),
		Name:   username,
		RoomID: roomID,
		conn:   conn,
	}
	svc.sessions[sess.ID] = sess
	r.names[username] = sess.ID
	r.sessions[sess.ID] = sess

	peers := make([]string, 0, len(r.names)-1)
	for name := range r.names {
		if name != username {
			peers = append(peers, name)
		}
	}
	others := r.snapshot(sess.ID)
	joinedAt := svc.now()
	svc.mu.Unlock()

	if stale != nil {
		_ = stale.conn.Close()
		svc.broadcast(staleRemaining, PresenceEvent{
			Type: EventLeft, Username: stale.Name, RoomID: roomID, Timestamp: joinedAt,
		})
	}

	zap.L().Info("chat.join", zap.String("username", username), zap.String("room", roomID))

	svc.broadcast(others, PresenceEvent{
		Type: EventJoined, Username: username, RoomID: roomID, Timestamp: joinedAt,
	})
	return sess, peers, nil
}

func (svc *chatService) Disconnect(sessionID string) {
	svc.mu.Lock()
	sess, ok := svc.sessions[sessionID]
	if !ok {
		svc.mu.Unlock()
		return
	}
	remaining := svc.removeLocked(sess)
	leftAt := svc.now()
	svc.mu.Unlock()

	zap.L().Info("chat.leave", zap.String("username", sess.Name), zap.String("room", sess.RoomID))

	svc.broadcast(remaining, PresenceEvent{
		Type: EventLeft, Username: sess.Name, RoomID: sess.RoomID, Timestamp: leftAt,
	})
}

// removeLocked is the single teardown path for a session: room membership,
// typing timer and rate-limit state all go here. It returns the members left
// behind so the caller can announce the departure outside the lock.
func (svc *chatService) removeLocked(sess *Session) []*Session {
	delete(svc.sessions, sess.ID)

	r, ok := svc.rooms[sess.RoomID]
	if !ok {
		return nil
	}
	delete(r.sessions, sess.ID)
	if r.names[sess.Name] == sess.ID {
		delete(r.names, sess.Name)
	}
	delete(r.typing, sess.Name)
	svc.cancelTypingLocked(typingKey{room: sess.RoomID, name: sess.Name})

	if r.empty() {
		delete(svc.rooms, sess.RoomID)
		return nil
	}
	return r.snapshot("")
}

func (svc *chatService) Send(sessionID, text string) SendResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{Status: Dropped}
	}

	svc.mu.Lock()
	sess, ok := svc.sessions[sessionID]
	if !ok {
		svc.mu.Unlock()
		return SendResult{Status: Dropped}
	}

	now := svc.now()
	if !sess.lastMsg.IsZero() {
		if wait := svc.cooldown - now.Sub(sess.lastMsg); wait > 0 {
			svc.mu.Unlock()
			return SendResult{Status: RateLimited, RetryAfter: ceilSeconds(wait)}
		}
	}
	// Stamp before any I/O so a concurrent burst from the same session
	// cannot slip past the cooldown.
	sess.lastMsg = now

	r, ok := svc.rooms[sess.RoomID]
	if !ok {
		svc.mu.Unlock()
		return SendResult{Status: Dropped}
	}
	wasTyping, typingLeft := svc.clearTypingLocked(r, sess)
	recipients := r.snapshot("")
	msg := Message{
		Username:  sess.Name,
		RoomID:    sess.RoomID,
		Content:   text,
		Timestamp: now,
		ID:        newMessageID(sess.RoomID, now, sess.Name),
	}
	svc.mu.Unlock()

	// A submitted message supersedes "still typing".
	if wasTyping {
		svc.broadcast(recipients, TypingEvent{
			Type: EventTyping, Username: sess.Name, IsTyping: false,
			TypingUsers: typingLeft, Timestamp: now,
		})
	}

	if svc.batched {
		svc.batcher.enqueue(msg)
	} else {
		svc.broadcast(recipients, msg.event())
	}
	return SendResult{Status: Accepted}
}

func (svc *chatService) SetTyping(sessionID string, typing bool) {
	svc.mu.Lock()
	sess, ok := svc.sessions[sessionID]
	if !ok {
		svc.mu.Unlock()
		return
	}
	r, ok := svc.rooms[sess.RoomID]
	if !ok {
		svc.mu.Unlock()
		return
	}
	now := svc.now()

	if typing {
		sess.typing = true
		r.typing[sess.Name] = struct{}{}
		svc.armTypingLocked(typingKey{room: sess.RoomID, name: sess.Name})
		list := r.typingNames()
		recipients := r.snapshot("")
		svc.mu.Unlock()

		svc.broadcast(recipients, TypingEvent{
			Type: EventTyping, Username: sess.Name, IsTyping: true,
			TypingUsers: list, Timestamp: now,
		})
		return
	}

	wasTyping, list := svc.clearTypingLocked(r, sess)
	if !wasTyping {
		svc.mu.Unlock()
		return
	}
	recipients := r.snapshot("")
	svc.mu.Unlock()

	svc.broadcast(recipients, TypingEvent{
		Type: EventTyping, Username: sess.Name, IsTyping: false,
		TypingUsers: list, Timestamp: now,
	})
}

// clearTypingLocked cancels the session's typing state and timer. It reports
// whether the session was typing and the room's typing set afterwards.
func (svc *chatService) clearTypingLocked(r *room, sess *Session) (bool, []string) {
	if !sess.typing {
		return false, nil
	}
	sess.typing = false
	delete(r.typing, sess.Name)
	svc.cancelTypingLocked(typingKey{room: sess.RoomID, name: sess.Name})
	return true, r.typingNames()
}

func (svc *chatService) Members(roomID string) []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return []string{}
	}
	return r.memberNames()
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
