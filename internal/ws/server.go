package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"groupchatgo/internal/services/chat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait

	maxFrameSize = 512
)

type WsServer struct {
	chatSvc  chat.IChatService
	upgrader websocket.Upgrader
}

func NewWsServer(chatSvc chat.IChatService, allowedOrigins []string) *WsServer {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WsServer{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // non-browser client
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	username := ginCtx.Param("username")
	roomID := ginCtx.Param("room_id")

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxFrameSize)

	conn := &clientConn{rawConn: rawConn}

	sess, peers, err := s.chatSvc.Connect(conn, username, roomID)
	if err != nil {
		conn.closeWithPolicyViolation(err.Error())
		return
	}

	welcome := chat.WelcomeEvent{
		Type:     chat.EventWelcome,
		Message:  fmt.Sprintf("Welcome to group '%s', %s!", sess.RoomID, sess.Name),
		RoomID:   sess.RoomID,
		Username: sess.Name,
		Users:    peers,
	}
	if err := conn.WriteJSON(welcome); err != nil {
		s.chatSvc.Disconnect(sess.ID)
		_ = conn.Close()
		return
	}

	go s.reader(sess.ID, conn)
	go s.pinger(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(sessionID string, conn *clientConn) {
	// The read loop owns the session lifecycle: whatever kills it, the one
	// teardown path below runs and is safe to hit more than once.
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("ws.reader_panic", zap.Any("panic", r))
		}
		s.chatSvc.Disconnect(sessionID)
		_ = conn.Close()
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		switch f := parseInbound(data); f.kind {
		case frameMessage:
			res := s.chatSvc.Send(sessionID, f.text)
			if res.Status == chat.RateLimited {
				// Surfaced to the originating connection only.
				_ = conn.WriteJSON(chat.RateLimitEvent{
					Type:             chat.EventRateLimit,
					Message:          fmt.Sprintf("Please wait %d seconds before sending another message", res.RetryAfter),
					RemainingSeconds: res.RetryAfter,
				})
			}
		case frameTyping:
			s.chatSvc.SetTyping(sessionID, f.typing)
		case frameEmpty:
			// Silently dropped.
		}
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if !conn.Alive() {
			return
		}
		err := conn.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		if err != nil {
			_ = conn.Close()
			return
		}
	}
}
