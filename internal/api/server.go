// Package api assembles the HTTP server: middleware stack, route table and
// lifecycle.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kartis/internal/cache"
	"kartis/internal/database"
	"kartis/internal/handlers"
	"kartis/internal/middleware"
	"kartis/internal/service"
	"kartis/internal/token"
)

type Server struct {
	engine *gin.Engine
	http   *http.Server
	db     *database.DB
}

type Options struct {
	Port     string
	GinMode  string
	Services *service.Services
	Tokens   *token.Manager
	Limiter  *cache.RateLimiter
	DB       *database.DB
}

func NewServer(opts Options) *Server {
	gin.SetMode(opts.GinMode)

	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.Logger(), middleware.CORS())

	h := handlers.New(opts.Services)
	registerRoutes(engine, h, opts)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              ":" + opts.Port,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
		db: opts.DB,
	}
}

func registerRoutes(engine *gin.Engine, h *handlers.Handlers, opts Options) {
	engine.GET("/health", func(c *gin.Context) {
		if err := opts.DB.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")

	public := v1.Group("")
	public.Use(middleware.RateLimit(opts.Limiter))
	{
		public.GET("/events/:eventId", h.GetEvent)
		public.POST("/events/:eventId/register", h.Register)
		public.POST("/cancellations", h.Cancel)
	}

	// The check-in page authenticates by the event's shareable token, not by
	// admin credentials.
	checkin := v1.Group("/checkin/:eventId")
	{
		checkin.GET("/registrations", h.CheckInList)
		checkin.GET("/stats", h.CheckInStats)
		checkin.POST("/registrations/:code", h.CheckIn)
		checkin.DELETE("/registrations/:code", h.UndoCheckIn)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth(opts.Tokens))
	{
		admin.POST("/schools/:schoolId/events", h.CreateEvent)
		admin.POST("/schools/:schoolId/bans", h.CreateBan)
		admin.GET("/schools/:schoolId/bans", h.ListBans)
		admin.DELETE("/schools/:schoolId/bans/:banId", h.LiftBan)
		admin.GET("/schools/:schoolId/registrations/search", h.SearchRegistrations)

		admin.GET("/events/:eventId", h.GetEventAdmin)
		admin.PATCH("/events/:eventId/status", h.SetEventStatus)
		admin.POST("/events/:eventId/repair", h.RepairEvent)
		admin.POST("/repair", h.RepairAll)

		admin.POST("/events/:eventId/tables", h.CreateTable)
		admin.GET("/events/:eventId/tables", h.ListTables)
		admin.PUT("/events/:eventId/tables/:tableId", h.UpdateTable)
		admin.DELETE("/events/:eventId/tables/:tableId", h.DeleteTable)
		admin.POST("/events/:eventId/tables/:tableId/duplicate", h.DuplicateTable)
		admin.POST("/events/:eventId/tables-bulk-delete", h.BulkDeleteTables)
		admin.POST("/events/:eventId/tables-reorder", h.ReorderTables)

		admin.GET("/events/:eventId/waitlist", h.GetWaitlist)
		admin.POST("/registrations/:registrationId/assign-table", h.AssignTable)
		admin.POST("/registrations/:registrationId/cancel", h.AdminCancel)
	}
}

// Engine exposes the router for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
