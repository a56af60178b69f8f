// Package api exposes the HTTP surface: ping intake, the dashboard read
// API and Prometheus metrics.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cronwatch/internal/config"
	"cronwatch/internal/db"
	"cronwatch/internal/schedule"
	"cronwatch/internal/stats"
)

type Server struct {
	cfg    *config.Config
	router *gin.Engine
	srv    *http.Server
}

func NewServer(cfg *config.Config, store *db.Store, sched *schedule.Service, statsSvc *stats.Service) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	h := &handlers{cfg: cfg, store: store, sched: sched, stats: statsSvc}
	setupRoutes(router, h)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: router,
	}

	return &Server{
		cfg:    cfg,
		router: router,
		srv:    srv,
	}, nil
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func setupRoutes(r *gin.Engine, h *handlers) {
	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Ping intake, compatible with the file-based log pipeline
	r.GET("/ping", h.pingTest)
	r.POST("/ping", h.receivePing)

	v1 := r.Group("/api/v1")
	{
		monitors := v1.Group("/monitors")
		{
			monitors.GET("", h.listMonitors)
			monitors.GET("/:id", h.getMonitor)
			monitors.GET("/:id/stats", h.getMonitorStats)
			monitors.GET("/:id/overdue", h.getOverdueHistory)
		}
	}
}
