// Package server exposes the HTTP API: opportunity feed, manual scan and
// collection triggers, watchlist CRUD, and dismissal administration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/slabwatch/slabwatch/internal/history"
	"github.com/slabwatch/slabwatch/internal/metrics"
	"github.com/slabwatch/slabwatch/internal/model"
	"github.com/slabwatch/slabwatch/internal/scanner"
	"github.com/slabwatch/slabwatch/internal/store"
)

// Config holds server construction parameters.
type Config struct {
	Port        int
	DevMode     bool
	CORSOrigins []string
}

// Server owns the router and the cached result of the most recent scan.
type Server struct {
	cfg       Config
	store     *store.Store
	scanner   *scanner.Scanner
	collector *history.Collector
	log       zerolog.Logger

	httpSrv *http.Server

	mu          sync.RWMutex
	lastScan    []model.Opportunity
	lastScanAt  time.Time
	scanRunning bool
}

// New builds the server. scanner and collector may be nil when the
// marketplace is unconfigured; the corresponding endpoints then return 503.
func New(cfg Config, st *store.Store, sc *scanner.Scanner, col *history.Collector, log zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		scanner:   sc,
		collector: col,
		log:       log.With().Str("component", "server").Logger(),
	}

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.observe())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/opportunities", s.getOpportunities)
		api.GET("/opportunities/export", s.exportOpportunities)
		api.POST("/scan", s.triggerScan)

		watchlist := api.Group("/watchlist")
		{
			watchlist.GET("", s.listCards)
			watchlist.POST("", s.createCard)
			watchlist.GET("/:id", s.getCard)
			watchlist.PUT("/:id", s.updateCard)
			watchlist.DELETE("/:id", s.deleteCard)
			watchlist.GET("/:id/history", s.cardHistory)
		}

		dismissals := api.Group("/dismissals")
		{
			dismissals.GET("", s.listDismissals)
			dismissals.POST("", s.dismiss)
			dismissals.DELETE("/:itemId", s.restore)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/collect", s.triggerCollection)
			admin.POST("/dismissals/cleanup", s.cleanupDismissals)
		}
	}

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// observe records request count and latency.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(started).Seconds())
	}
}
