package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/PratikDhanave/cohort-sync-service/internal/auth"
	"github.com/PratikDhanave/cohort-sync-service/internal/store"
)

type countingStore struct {
	store.Store
	from, to time.Time
}

func (s *countingStore) CountEvents(_ context.Context, _, _ string, from, to time.Time) (int64, error) {
	s.from, s.to = from, to
	return 3, nil
}

func getMetrics(r *gin.Engine, q url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/metrics?"+q.Encode(), nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := &countingStore{}
	r := gin.New()
	r.Use(auth.APIKeyMiddleware(map[string]string{"k": "tenant1"}))
	RegisterMetricRoutes(r, st)

	from := "2026-10-01T00:00:00Z"
	to := "2026-10-02T00:00:00Z"

	w := getMetrics(r, url.Values{"event_name": {"login"}, "from": {from}, "to": {to}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"event_name":"login","count":3}`, w.Body.String())
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), st.from)

	bad := []url.Values{
		{"from": {from}, "to": {to}},
		{"event_name": {"login"}, "to": {to}},
		{"event_name": {"login"}, "from": {"yesterday"}, "to": {to}},
		{"event_name": {"login"}, "from": {to}, "to": {from}},
	}
	for _, q := range bad {
		assert.Equal(t, http.StatusBadRequest, getMetrics(r, q).Code, q.Encode())
	}
}
