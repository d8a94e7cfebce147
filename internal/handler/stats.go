package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/monitor"
	"marketpulse/internal/queue"
)

type StatsHandler struct {
	Monitor *monitor.Monitor
	Queue   *queue.PendingQueue
}

func (h *StatsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stats", h.stats)
}

func (h *StatsHandler) stats(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	snap := h.Monitor.Stats.Snapshot()
	meta := map[string]any{
		"running": h.Monitor.Running(),
	}
	if h.Queue != nil {
		meta["queue_len"] = h.Queue.Len()
		meta["queue_cap"] = h.Queue.Cap()
	}
	Ok(c, snap, meta)
}
