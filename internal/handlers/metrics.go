package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/cohort-sync-service/internal/auth"
	"github.com/PratikDhanave/cohort-sync-service/internal/models"
	"github.com/PratikDhanave/cohort-sync-service/internal/store"
)

// parseWindow reads the half-open window [from,to) from the query string.
func parseWindow(c *gin.Context) (from, to time.Time, err error) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return from, to, errors.New("from, to are required")
	}

	if from, err = parseRFC3339(fromStr); err != nil {
		return from, to, errors.New("from must be RFC3339")
	}
	if to, err = parseRFC3339(toStr); err != nil {
		return from, to, errors.New("to must be RFC3339")
	}
	if !from.Before(to) {
		return from, to, errors.New("from must be < to")
	}
	return from, to, nil
}

// RegisterMetricRoutes registers the serving-path endpoint.
//
// GET /metrics?event_name=...&from=...&to=...
// - Requires X-API-Key (tenant context)
// - Returns count for the window [from,to)
func RegisterMetricRoutes(r gin.IRoutes, st store.Store) {
	r.GET("/metrics", func(c *gin.Context) {
		tenantID := auth.TenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		eventName := c.Query("event_name")
		if eventName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_name, from, to are required"})
			return
		}

		from, to, err := parseWindow(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		count, err := st.CountEvents(c.Request.Context(), tenantID, eventName, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, models.MetricsResponse{
			EventName: eventName,
			Count:     count,
		})
	})
}
