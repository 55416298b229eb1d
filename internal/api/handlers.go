package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"futures-engine/internal/engine"
	"futures-engine/internal/signal"
	"futures-engine/pkg/config"
)

// engineErrorStatus maps typed engine refusals to HTTP statuses. Anything
// unrecognized is treated as an upstream exchange failure.
func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrRunning),
		errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, engine.ErrAtCapacity),
		errors.Is(err, engine.ErrAlreadyInSide),
		errors.Is(err, engine.ErrPositionBusy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoPosition):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownStrategy),
		errors.Is(err, engine.ErrNoSymbols):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) startEngine(c *gin.Context) {
	// The loop must outlive this request; it is stopped via the engine,
	// not the request context.
	if err := s.Engine.Start(context.Background()); err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) stopEngine(c *gin.Context) {
	s.Engine.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) getStatus(c *gin.Context) {
	status := s.Engine.Status()
	stats, err := s.Store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"engine": status,
		"stats":  stats,
	})
}

func (s *Server) manualTrade(c *gin.Context) {
	var req struct {
		Symbol    string `json:"symbol"`
		Direction string `json:"direction"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	dir := signal.Direction(strings.ToUpper(req.Direction))
	if dir != signal.Long && dir != signal.Short {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be LONG or SHORT"})
		return
	}
	if err := s.Engine.ManualTrade(c.Request.Context(), strings.ToUpper(req.Symbol), dir); err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) closePosition(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
		All    bool   `json:"all"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.All {
		if err := s.Engine.CloseAll(c.Request.Context()); err != nil {
			c.JSON(engineErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
		return
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required unless all=true"})
		return
	}
	if err := s.Engine.ClosePosition(c.Request.Context(), strings.ToUpper(req.Symbol)); err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Settings())
}

func (s *Server) updateSettings(c *gin.Context) {
	var patch config.Patch
	if err := c.BindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	next, err := s.Engine.UpdateSettings(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.settingsPath != "" {
		if err := config.SaveSettings(s.settingsPath, next); err != nil {
			log.Printf("⚠️ settings not persisted: %v", err)
		}
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) updateSymbols(c *gin.Context) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	for i, sym := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	if err := s.Engine.UpdateSymbols(req.Symbols); err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": req.Symbols})
}

func (s *Server) getTrades(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-1000"})
			return
		}
		limit = n
	}
	trades, err := s.Store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trades unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.Store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
