// Package api exposes a read-mostly REST surface over the running
// grids: listing, inspection and manual stop.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gridbot/grid"
	"gridbot/logger"
	"gridbot/manager"
	"gridbot/store"
)

type Server struct {
	router  *gin.Engine
	manager *manager.Manager
	store   *store.Store
	port    int
}

func NewServer(mgr *manager.Manager, st *store.Store, port int) *Server {
	// Release mode keeps gin quiet; our own logger covers requests
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(corsMiddleware())

	s := &Server{
		router:  router,
		manager: mgr,
		store:   st,
		port:    port,
	}
	s.setupRoutes()
	return s
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.Any("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/grids", s.handleListGrids)
		api.GET("/grids/:id", s.handleGetGrid)
		api.GET("/grids/:id/events", s.handleGridEvents)
		api.POST("/grids/:id/stop", s.handleStopGrid)
	}
}

// Start serves until the listener fails. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Log.Infof("[API] server starting at http://localhost%s", addr)
	logger.Log.Infof("  GET  /api/status            - aggregate statistics")
	logger.Log.Infof("  GET  /api/grids             - active and finished grids")
	logger.Log.Infof("  GET  /api/grids/:id         - one grid with open levels")
	logger.Log.Infof("  GET  /api/grids/:id/events  - trade and lifecycle log")
	logger.Log.Infof("  POST /api/grids/:id/stop    - flatten and close one grid")
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	stats, err := s.store.GetStatistics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	closed, pnl := s.manager.Stats()
	c.JSON(http.StatusOK, gin.H{
		"active_grids":        s.manager.ActiveCount(),
		"closed_this_run":     closed,
		"pnl_this_run":        pnl.String(),
		"lifetime_statistics": stats,
	})
}

type gridView struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	LowerBound    string `json:"lower_bound"`
	UpperBound    string `json:"upper_bound"`
	StepCount     int    `json:"step_count"`
	CurrentLevel  int    `json:"current_level"`
	OpenLevels    []int  `json:"open_levels"`
	RealizedPnL   string `json:"realized_pnl"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	BuyCount      int    `json:"buy_count"`
	SellCount     int    `json:"sell_count"`
	LastPrice     string `json:"last_price"`
	CreatedAt     string `json:"created_at"`
}

func viewOf(snap grid.Snapshot) gridView {
	levels := make([]int, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		levels = append(levels, int(p.Level))
	}
	return gridView{
		ID:            snap.ID,
		Label:         snap.Label,
		Symbol:        snap.Symbol,
		Status:        string(snap.Status),
		LowerBound:    snap.LowerBound.String(),
		UpperBound:    snap.UpperBound.String(),
		StepCount:     snap.StepCount,
		CurrentLevel:  snap.CurrentLevel,
		OpenLevels:    levels,
		RealizedPnL:   snap.RealizedPnL.String(),
		UnrealizedPnL: snap.UnrealizedPnL().String(),
		BuyCount:      snap.BuyCount,
		SellCount:     snap.SellCount,
		LastPrice:     snap.LastPrice.String(),
		CreatedAt:     snap.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *Server) handleListGrids(c *gin.Context) {
	snaps := s.manager.Snapshots()
	views := make([]gridView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, viewOf(snap))
	}
	c.JSON(http.StatusOK, gin.H{"grids": views})
}

func (s *Server) handleGetGrid(c *gin.Context) {
	id := c.Param("id")
	if inst, ok := s.manager.Get(id); ok {
		snap := inst.Snapshot()
		c.JSON(http.StatusOK, gin.H{"grid": viewOf(snap), "positions": snap.Positions})
		return
	}
	model, levels, err := s.store.GetInstance(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "grid not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"grid": model, "positions": levels})
}

func (s *Server) handleGridEvents(c *gin.Context) {
	events, err := s.store.ListEvents(c.Param("id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleStopGrid(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.StopInstance(c.Request.Context(), id); err != nil {
		if errors.Is(err, manager.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "grid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": id})
}
