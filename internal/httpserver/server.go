package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/cohort-sync-service/internal/auth"
	"github.com/PratikDhanave/cohort-sync-service/internal/cohortsync"
	"github.com/PratikDhanave/cohort-sync-service/internal/handlers"
	"github.com/PratikDhanave/cohort-sync-service/internal/jobs"
	"github.com/PratikDhanave/cohort-sync-service/internal/store"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	APIKeys map[string]string
	Store   store.Store
	Hook    handlers.EventHook
	Storage cohortsync.Storage
	Jobs    *jobs.Queue
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready
// Authenticated: /events, /metrics, /cohorts/status, /cohorts/retries
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Auth group enforces tenant context via API key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(d.APIKeys))

	handlers.RegisterEventRoutes(authGroup, d.Store, d.Hook)
	handlers.RegisterMetricRoutes(authGroup, d.Store)
	handlers.RegisterCohortRoutes(authGroup, d.Storage, d.Jobs)

	return r
}
