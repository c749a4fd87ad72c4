package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foundly/contact-service/internal/auth"
	"github.com/foundly/contact-service/internal/block"
	"github.com/foundly/contact-service/internal/broadcast"
	"github.com/foundly/contact-service/internal/config"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/httpapi"
	"github.com/foundly/contact-service/internal/item"
	"github.com/foundly/contact-service/internal/message"
	"github.com/foundly/contact-service/internal/metrics"
	"github.com/foundly/contact-service/internal/presence"
	"github.com/foundly/contact-service/internal/report"
	"github.com/foundly/contact-service/internal/storage"
	"github.com/foundly/contact-service/internal/ws"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	log.Printf("Foundly contact service starting")
	log.Printf("  listen_addr: %s", cfg.ListenAddr)
	log.Printf("  nats_url:    %s", cfg.NATSURL)
	log.Printf("  redis_addr:  %s", cfg.RedisAddr)
	log.Printf("  server_name: %s", cfg.ServerName)

	// --- Postgres ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// --- NATS ---
	bcConfig := broadcast.DefaultConfig()
	bcConfig.URL = cfg.NATSURL
	bcConfig.Name = cfg.ServerName
	bc, err := broadcast.Connect(bcConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer bc.Close()

	// --- Redis ---
	presenceStore, err := presence.NewStore(cfg.RedisAddr, cfg.ServerName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer presenceStore.Close()

	// --- Domain wiring ---
	verifier := auth.NewVerifier(cfg.JWTSecret)
	items := item.NewPGDirectory(db)
	convStore := conversation.NewPGStore(db)
	msgStore := message.NewPGStore(db)

	blocks := block.NewService(block.NewPGStore(db))
	messages := message.NewService(msgStore, convStore, blocks, bc)
	conversations := conversation.NewRegistry(convStore, items, blocks, messages, bc)
	reports := report.NewService(report.NewPGStore(db))

	wsConfig := ws.DefaultConfig()
	wsConfig.ReadTimeout = cfg.ReadTimeout
	wsConfig.WriteTimeout = cfg.WriteTimeout
	wsConfig.HeartbeatInterval = cfg.HeartbeatInterval
	gateway := ws.NewGateway(wsConfig, verifier, bc, presenceStore, convStore)

	api := httpapi.NewServer(verifier, conversations, messages, blocks, reports)

	root := http.NewServeMux()
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	root.Handle("/metrics", metrics.Handler())
	root.HandleFunc("/ws", gateway.HandleUpgrade)
	root.Handle("/", api.Router())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: root,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	gateway.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	log.Printf("bye")
}
