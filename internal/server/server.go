package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/omnandre07/SchemeSahayak/internal/engine"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/metrics"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	Debug          bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultServerConfig returns the local-development defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		AllowedOrigins: []string{"*"},
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// Server exposes the conversation engine over HTTP: submit an utterance,
// answer a clarification, fetch a session snapshot, replay an offline
// batch. All mutation flows through the controller.
type Server struct {
	controller *engine.Controller
	metrics    *metrics.Metrics
	engineGin  *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
	startTime  time.Time
}

// NewServer builds the router and wires handlers.
func NewServer(controller *engine.Controller, m *metrics.Metrics, cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		controller: controller,
		metrics:    m,
		engineGin:  router,
		logger:     logging.NewComponentLogger("http"),
		startTime:  time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	api := s.engineGin.Group("/api")

	api.GET("/health", s.handleHealth)
	api.POST("/conversation", s.handleUtterance)

	sessions := api.Group("/sessions")
	{
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.POST("/:id/answers", s.handleAnswer)
	}

	api.POST("/replay", s.handleReplay)

	if s.metrics != nil {
		s.engineGin.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engineGin
}

// Start blocks serving HTTP until shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting SchemeSahayak API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SchemeSahayak API server")
	return s.httpServer.Shutdown(ctx)
}
