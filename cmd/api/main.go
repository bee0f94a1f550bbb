package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/fabric-agent/backend/internal/config"
	"github.com/zhouzirui/fabric-agent/backend/internal/handler"
	"github.com/zhouzirui/fabric-agent/backend/internal/handler/query"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/dataagent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := cfg.Agent.Validate(); err != nil {
		log.Printf("warning: %v", err)
		log.Println("data agent requests will fail until the configuration is fixed")
	}

	sessions := session.NewMemoryStore(session.Options{
		Capacity: cfg.Session.Capacity,
		TTL:      cfg.Session.TTL,
	})

	// The executor is built on the first query, which may trigger an interactive sign-in.
	provider := dataagent.NewProvider(cfg.Agent, sessions)
	resolve := func(ctx context.Context) (query.Executor, error) {
		exec, err := provider.Get(ctx)
		if err != nil {
			return nil, err
		}
		return exec, nil
	}

	router := handler.NewRouter(resolve, cfg.Agent.Timeout, cfg.CORS.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Fabric data agent proxy listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
