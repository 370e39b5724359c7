package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dhruv457457/AutoPay/internal/config"
	"github.com/dhruv457457/AutoPay/internal/handlers"
	"github.com/dhruv457457/AutoPay/internal/logger"
	"github.com/dhruv457457/AutoPay/internal/storage"
)

// Server owns the HTTP surface of the payment agent: the delegation CRUD
// API, the activity feed and the health probe. The payment scheduler runs
// beside it and is stopped by the caller before Shutdown is invoked.
type Server struct {
	cfg        *config.Config
	store      storage.Store
	agent      handlers.AgentStatus
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer assembles the router. agent may be nil when the chain identity
// failed to bootstrap; the API then reports agentReady=false but stays up.
func NewServer(cfg *config.Config, store storage.Store, agent handlers.AgentStatus) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.API.CORS.AllowedOrigins,
		AllowMethods:     cfg.API.CORS.AllowedMethods,
		AllowHeaders:     cfg.API.CORS.AllowedHeaders,
		AllowCredentials: cfg.API.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{cfg: cfg, store: store, agent: agent, router: router}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", handlers.HealthHandler(s.store, s.agent))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/delegations", handlers.StoreDelegationHandler(s.store))
		v1.GET("/delegations", handlers.ListDelegationsHandler(s.store))
		v1.GET("/delegations/:address", handlers.GetDelegationHandler(s.store))
		v1.DELETE("/delegations/:address", handlers.DeleteDelegationHandler(s.store))
		v1.GET("/payments/attempts", handlers.ListPaymentAttemptsHandler(s.store))
	}
}

// Router exposes the assembled engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Agent.Host, s.cfg.Agent.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Logger.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new requests and drains in-flight ones within the
// context deadline. The store is closed last so draining handlers can still
// reach it.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	if err := s.store.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("failed to close store")
	}
	return shutdownErr
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
