package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles health check requests
// @Summary Health check endpoint
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "campaign-sheet-service",
		"version": "1.0.0",
	})
}

// Dependency is a backing service the readiness probe pings
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// ReadinessCheck reports 503 while any dependency fails its ping
func ReadinessCheck(deps ...Dependency) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		ready := true
		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				checks[dep.Name] = err.Error()
				ready = false
				continue
			}
			checks[dep.Name] = "ok"
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not ready"
		}
		c.JSON(status, gin.H{
			"status": state,
			"checks": checks,
		})
	}
}
