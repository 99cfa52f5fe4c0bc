package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/middleware"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

// AdminDeps bundles the admin surface dependencies.
type AdminDeps struct {
	Generator *ai.Generator
	Emitter   *observability.Emitter
}

func SetupAdminRoutes(router *gin.Engine, deps *AdminDeps, authMiddleware *middleware.AuthMiddleware) {
	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAdmin())

	admin.GET("/generator", func(c *gin.Context) {
		settings := deps.Generator.Settings()
		// The key never leaves the process; presence is all the UI needs.
		hasKey := settings.CloudAPIKey != ""
		settings.CloudAPIKey = ""
		c.JSON(http.StatusOK, gin.H{"settings": settings, "cloud_api_key_set": hasKey})
	})

	admin.PUT("/generator", func(c *gin.Context) {
		var settings models.GeneratorSettings
		if err := c.ShouldBindJSON(&settings); err != nil {
			utils.RespondWithBadRequest(c, "Invalid settings payload", gin.H{"error": err.Error()})
			return
		}
		if err := deps.Generator.UpdateSettings(settings); err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		deps.Emitter.Emit(c.Request.Context(), models.Event{
			Type:    models.EventSystem,
			TraceID: middleware.GetTraceID(c),
			Message: "generator settings updated",
		})

		updated := deps.Generator.Settings()
		hasKey := updated.CloudAPIKey != ""
		updated.CloudAPIKey = ""
		c.JSON(http.StatusOK, gin.H{"settings": updated, "cloud_api_key_set": hasKey})
	})

	admin.GET("/events", func(c *gin.Context) {
		filter := models.EventFilter{
			Type:    c.Query("type"),
			Level:   c.Query("level"),
			TraceID: c.Query("trace_id"),
			UserID:  c.Query("user_id"),
			Status:  c.Query("status"),
			Search:  c.Query("search"),
		}
		filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
		filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
		if since := c.Query("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				filter.Since = t
			}
		}
		if until := c.Query("until"); until != "" {
			if t, err := time.Parse(time.RFC3339, until); err == nil {
				filter.Until = t
			}
		}

		events, err := deps.Emitter.Query(c.Request.Context(), filter)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	})

	admin.GET("/events/histogram", func(c *gin.Context) {
		hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
		buckets, err := deps.Emitter.Histogram(c.Request.Context(), hours)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"buckets": buckets, "hours": hours})
	})

	admin.GET("/traces/:id", func(c *gin.Context) {
		events, err := deps.Emitter.Trace(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		if len(events) == 0 {
			utils.RespondWithNotFound(c, "trace not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"trace_id": c.Param("id"), "events": events})
	})
}
