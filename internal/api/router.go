package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hoshiko-tv/hoshiko/internal/anilist"
	"github.com/hoshiko-tv/hoshiko/internal/provider"
	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

// Server represents the REST API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	provider   *provider.Provider
	tracker    *anilist.Client // Optional: nil when no tracking account is configured
	engine     torrent.Engine
	log        *slog.Logger
}

// NewServer creates a new API server
func NewServer(port int, p *provider.Provider, tracker *anilist.Client, engine torrent.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		provider: p,
		tracker:  tracker,
		engine:   engine,
		log:      slog.With("component", "api"),
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		c.Next()
		s.log.Info("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	})

	// CORS for development
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// Catalog
	api.GET("/search", s.search)
	api.GET("/airing", s.recentlyAired)
	api.GET("/tracked", s.tracked)

	// Episodes
	api.GET("/episodes/count", s.countEpisodes)
	api.GET("/episodes/streams", s.episodeStreams)

	// Torrents - transfer management
	api.GET("/torrents", s.listTransfers)
	api.GET("/torrents/:hash", s.getTransfer)
	api.DELETE("/torrents/:hash", s.deleteTransfer)
	api.POST("/torrents/:hash/resume", s.resumeTransfer)

	// Status
	api.GET("/status", s.getStatus)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("starting api server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("api server error", "error", err)
		return err
	}
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// getStatus reports component health
// GET /api/status
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"tracker":          s.tracker != nil,
		"transfers_loaded": len(s.engine.Transfers()),
	})
}

// Error response helper
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
