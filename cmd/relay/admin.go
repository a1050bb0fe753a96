package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/upstream"
)

// NewAdminRouter builds the debug/admin surface (GET /admin/cache/stats,
// POST /admin/cache/invalidate) as a separate gin router on its own
// listener, per SPEC_FULL.md §6's "gateway service and an admin/debug
// surface as distinct router instances".
func NewAdminRouter(projects *upstream.ProjectCache, relays *upstream.RelayCache, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/admin/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"project_state": projects.Stats(),
			"relay_info":    relays.Stats(),
		})
	})

	r.POST("/admin/cache/invalidate", func(c *gin.Context) {
		projects.Evict()
		relays.Evict()
		if log != nil {
			log.Info(c.Request.Context(), "admin: cache invalidated", nil)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
