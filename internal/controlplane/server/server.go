package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/market"
)

type Config struct {
	DBPath string
}

// Server 是撮合核心的 HTTP 控制面：对外暴露全部市场操作，
// 同时维护一份 sqlite 读模型（市场快照 + 成交历史）供查询。
type Server struct {
	cfg Config
	db  *sql.DB
	svc *market.Service
	hub *events.Hub

	bgCancel func()
	bgWG     sync.WaitGroup
}

func New(cfg Config, svc *market.Service, hub *events.Hub) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if svc == nil || hub == nil {
		return nil, errors.New("market service and hub are required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Server{cfg: cfg, db: db, svc: svc, hub: hub}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.startBackground()
	return s, nil
}

func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgWG.Wait()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")

	markets := api.Group("/markets")
	markets.GET("/", s.wrap(s.handleMarketsList))
	markets.POST("/", s.wrap(s.handleMarketCreate))
	marketID := markets.Group("/:marketID")
	marketID.GET("/", s.wrap(s.handleMarketGet))
	marketID.POST("/split", s.wrap(s.handleSplit))
	marketID.POST("/merge", s.wrap(s.handleMerge))
	marketID.POST("/settle", s.wrap(s.handleSettle))
	marketID.POST("/claim", s.wrap(s.handleClaim))
	marketID.POST("/orders", s.wrap(s.handleOrderPlace))
	marketID.POST("/orders/:orderID/cancel", s.wrap(s.handleOrderCancel))
	marketID.GET("/book", s.wrap(s.handleBookGet))
	marketID.GET("/stats/:user", s.wrap(s.handleStatsGet))
	marketID.GET("/trades", s.wrap(s.handleTradesList))
	marketID.GET("/stream", s.wrap(s.handleEventStream))

	api.POST("/faucet", s.wrap(s.handleFaucet))
	api.GET("/balances/:user", s.wrap(s.handleBalanceGet))

	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "goclob_path_params"

// wrap adapts existing net/http handlers to gin, injecting path params into request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}
