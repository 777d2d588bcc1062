package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"groupchatgo/internal/config"
	"groupchatgo/internal/http/http_server"
	"groupchatgo/internal/services/chat"
	"groupchatgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Chat service (session manager + batch flusher)
	chatSvc := chat.NewChatService(chat.Options{
		MessageCooldown: cfg.MessageCooldown,
		TypingTimeout:   cfg.TypingTimeout,
		BatchSize:       cfg.BatchSize,
		BatchInterval:   cfg.BatchInterval,
		BatchedDelivery: cfg.BatchedDelivery,
	})
	chatSvc.Start()

	// 4. WebSocket server
	wsSrv := ws.NewWsServer(chatSvc, cfg.AllowedOrigins)

	// 5. HTTP + WS server
	httpServer := http_server.NewHttpServer(cfg.HttpServerPort, cfg.AllowedOrigins, wsSrv, chatSvc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()
	Log.Info("Chat server started", zap.Uint16("port", cfg.HttpServerPort))

	// 6. Wait for shutdown signal, then tear down in order:
	//    stop accepting HTTP, then drain the batch flusher.
	select {
	case <-ctx.Done():
		if err := httpServer.Dispose(); err != nil {
			Log.Error("HTTP shutdown failed", zap.Error(err))
		}
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			Log.Error("HTTP server failed", zap.Error(err))
		}
	}

	chatSvc.Stop()
	Log.Info("Chat server stopped")
}
