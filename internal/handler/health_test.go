package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthzAlwaysOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &HealthHandler{}
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d want=%d", w.Code, http.StatusOK)
	}
}

func TestReadyzReportsMissingDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &HealthHandler{}
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d want=%d", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), "db_missing") {
		t.Fatalf("body=%q", w.Body.String())
	}
}
