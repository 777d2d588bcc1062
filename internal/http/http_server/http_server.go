package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"groupchatgo/internal/http/chathandler"
	"groupchatgo/internal/services/chat"
	"groupchatgo/internal/ws"
)

type httpServer struct {
	listenPort     uint16
	allowedOrigins []string
	srv            http.Server
	ln             net.Listener
	chatSvc        chat.IChatService
	wsSrv          *ws.WsServer
}

func NewHttpServer(listenPort uint16, allowedOrigins []string, wsSrv *ws.WsServer, chatSvc chat.IChatService) *httpServer {
	return &httpServer{
		listenPort:     listenPort,
		allowedOrigins: allowedOrigins,
		wsSrv:          wsSrv,
		chatSvc:        chatSvc,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()

	routerEngine.Use(cors.New(cors.Config{
		AllowOrigins:     h.allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Static files for the web UI
	routerEngine.StaticFile("", "public/index.html")
	routerEngine.StaticFile("/script.js", "public/script.js")

	// websocket endpoint
	routerEngine.GET("/ws/:username/:room_id", h.wsSrv.Handle)

	// REST API
	ch := chathandler.New(h.chatSvc)
	ch.Register(routerEngine)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	// Fresh context: the process signal context is already cancelled by the
	// time shutdown runs.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}

	return nil
}
