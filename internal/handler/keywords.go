package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/filter"
)

type KeywordsHandler struct {
	Engine *filter.Engine
}

func (h *KeywordsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/keywords")
	group.GET("", h.summary)
	group.POST("/reload", h.reload)
}

func (h *KeywordsHandler) summary(c *gin.Context) {
	if !h.Engine.Ready() {
		Error(c, http.StatusServiceUnavailable, "ruleset not loaded", nil)
		return
	}
	high, medium, exclude := h.Engine.Counts()
	Ok(c, gin.H{
		"high":    high,
		"medium":  medium,
		"exclude": exclude,
		"mode":    h.Engine.Mode(),
	}, nil)
}

func (h *KeywordsHandler) reload(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	if err := h.Engine.Reload(); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	high, medium, exclude := h.Engine.Counts()
	Ok(c, gin.H{
		"high":    high,
		"medium":  medium,
		"exclude": exclude,
	}, nil)
}
