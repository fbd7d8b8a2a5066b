package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/goclob/internal/controlplane/server"
	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/internal/market"
	"github.com/betbot/goclob/internal/store"
	"github.com/betbot/goclob/pkg/config"
	"github.com/betbot/goclob/pkg/logger"
	"github.com/betbot/goclob/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("GOCLOB_CONFIG", ""), "YAML config file path")
		listenAddr = flag.String("listen", getenv("GOCLOB_LISTEN", ""), "HTTP listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	st, err := store.Open(store.OpenOptions{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory})
	if err != nil {
		log.Fatalf("open record store failed: %v", err)
	}

	hub := events.NewHub()
	svc := market.NewService(cfg.Engine, st, ledger.NewMemoryLedger(), hub)

	srv, err := server.New(server.Config{DBPath: cfg.Server.DBPath}, svc, hub)
	if err != nil {
		log.Fatalf("init server failed: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		_ = httpSrv.Shutdown(ctx)
	})
	mgr.OnShutdown(func(context.Context) {
		_ = srv.Close()
	})
	mgr.OnShutdown(func(context.Context) {
		_ = st.Close()
	})

	go func() {
		logger.Infof("clob server listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	fmt.Println("server stopped")
}
