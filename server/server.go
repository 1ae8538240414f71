// Package server hosts the HTTP surface of the relay: the page-serving
// routes, a health endpoint and the /ws live-update stream.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"marketrelay/cache"
	"marketrelay/config"
	"marketrelay/hub"
	"marketrelay/logger"
)

type Server struct {
	cfg        *config.Config
	log        *logger.Log
	cache      *cache.SnapshotCache
	hub        *hub.Hub
	engine     *gin.Engine
	httpServer *http.Server
	templates  bool
}

func New(cfg *config.Config, snapshots *cache.SnapshotCache, h *hub.Hub) *Server {
	log := logger.GetLogger()

	if config.IsProductionLike(config.AppEnvironment()) {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	srv := &Server{
		cfg:    cfg,
		log:    log,
		cache:  snapshots,
		hub:    h,
		engine: engine,
	}

	if cfg.Server.TemplatesGlob != "" {
		engine.LoadHTMLGlob(cfg.Server.TemplatesGlob)
		srv.templates = true
	}
	if cfg.Server.StaticDir != "" {
		engine.Static("/static", cfg.Server.StaticDir)
	}

	srv.routes()

	log.WithComponent("server").WithFields(logger.Fields{
		"address": cfg.Server.Address,
	}).Info("server initialized")

	return srv
}

func (s *Server) routes() {
	if s.templates {
		s.engine.GET("/", s.handleIndex)
		s.engine.GET("/coins/:page", s.handleCoinPage)
	}
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/ws", s.handleWS)
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.Address,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.WithComponent("server").WithFields(logger.Fields{
		"address": s.cfg.Server.Address,
	}).Info("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"name":    s.cfg.Marketrelay.Name,
		"symbols": s.cfg.Source.Indodax.Symbols,
	})
}

func (s *Server) handleCoinPage(c *gin.Context) {
	// filepath.Base strips any traversal the client smuggles into the param.
	page := filepath.Base(c.Param("page"))
	c.HTML(http.StatusOK, "coin.html", gin.H{
		"name": s.cfg.Marketrelay.Name,
		"page": page,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     s.cfg.Marketrelay.Name,
		"version":     s.cfg.Marketrelay.Version,
		"symbols":     len(s.cfg.Source.Indodax.Symbols),
		"cached":      s.cache.Len(),
		"subscribers": s.hub.Count(),
		"time":        time.Now().UTC(),
	})
}
