package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/db"
	"marketpulse/internal/filter"
)

type HealthHandler struct {
	DB     *db.DB
	Engine *filter.Engine
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	if err := db.Ping(h.DB); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	if !h.Engine.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ruleset_missing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
