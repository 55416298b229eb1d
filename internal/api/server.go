// Package api exposes the engine's control and status surface over HTTP,
// plus a websocket event stream for the dashboard.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"futures-engine/internal/engine"
	"futures-engine/internal/events"
	"futures-engine/internal/store"
	"futures-engine/pkg/config"
)

// Server wires HTTP endpoints around the engine and event bus.
type Server struct {
	Router *gin.Engine
	Bus    *events.Bus
	Engine *engine.Engine
	Store  *store.Store

	jwtSecret    string
	adminUser    string
	passwordHash []byte
	settingsPath string
}

// NewServer builds the router with the full middleware stack and routes.
// The admin password is hashed once here and discarded.
func NewServer(eng *engine.Engine, st *store.Store, bus *events.Bus, cfg *config.Config) (*Server, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:       r,
		Bus:          bus,
		Engine:       eng,
		Store:        st,
		jwtSecret:    cfg.JWTSecret,
		adminUser:    cfg.AdminUsername,
		passwordHash: hash,
		settingsPath: cfg.SettingsPath,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", s.login)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.jwtSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/settings", s.getSettings)
			protected.PUT("/settings", s.updateSettings)
			protected.PUT("/symbols", s.updateSymbols)
			protected.GET("/trades", s.getTrades)
			protected.GET("/stats", s.getStats)

			protected.POST("/engine/start", s.startEngine)
			protected.POST("/engine/stop", s.stopEngine)
			protected.POST("/trade", s.manualTrade)
			protected.POST("/positions/close", s.closePosition)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
