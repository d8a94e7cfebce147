package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/repository"
)

type ItemsHandler struct {
	Repo     repository.Repository
	Location *time.Location
}

func (h *ItemsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/items")
	group.GET("", h.list)
	group.GET("/stats", h.dailyStats)
}

func (h *ItemsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	date, err := h.parseDate(c.Query("date"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	minImpact := 0
	if raw := c.Query("min_impact"); raw != "" {
		minImpact, err = strconv.Atoi(raw)
		if err != nil || minImpact < 0 || minImpact > 10 {
			Error(c, http.StatusBadRequest, "invalid min_impact", nil)
			return
		}
	}

	items, err := h.Repo.ListDailyItems(c.Request.Context(), date, minImpact)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"date": date.Format("2006-01-02"), "count": len(items)})
}

func (h *ItemsHandler) dailyStats(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	date, err := h.parseDate(c.Query("date"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	stats, err := h.Repo.DailyStats(c.Request.Context(), date)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, stats, nil)
}

// parseDate defaults to today in the configured timezone.
func (h *ItemsHandler) parseDate(raw string) (time.Time, error) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	if raw == "" {
		return time.Now().In(loc), nil
	}
	return time.ParseInLocation("2006-01-02", raw, loc)
}
