package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmpedia-backend/internal/scheduler"
)

type ReadinessProbe interface {
	Ready() bool
	Results() []scheduler.CheckResult
}

func SetupHealthRoutes(router gin.IRouter, probe ReadinessProbe) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		if probe != nil && !probe.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": probe.Results()})
			return
		}
		var checks []scheduler.CheckResult
		if probe != nil {
			checks = probe.Results()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
	})
}
