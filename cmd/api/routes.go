package main

import (
	"database/sql"
	"net/http"
	"time"

	"gymcrm-calls/internal/chat"
	"gymcrm-calls/internal/httpapi"
	"gymcrm-calls/internal/rbac"
	"gymcrm-calls/internal/telephony"
	"gymcrm-calls/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	DB       *sql.DB
	Webhooks telephony.WebhookHandler
	Chat     chat.WebhookHandler
	Limiter  *telephony.IPRateLimiter
	API      httpapi.Handlers
}

// registerPublicRoutes wires health, metrics and provider webhooks.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerPublicRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if d.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.DB, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// PBX and chat gateway webhooks. Authenticity is checked per request by
	// the PBX verifier; the limiter only caps abuse per source IP.
	hooks := r.Group("")
	hooks.Use(d.Limiter.Middleware())
	{
		hooks.POST("/events/call", d.Webhooks.HandleCallEvent)
		hooks.POST("/events/summary", d.Webhooks.HandleCallSummary)
		hooks.POST("/webhooks/chat", d.Chat.HandleMessages)
		// Path the chat gateway is configured with in the CRM.
		hooks.POST("/wazzup/webhooks", d.Chat.HandleMessages)
	}
}

func registerProtectedRoutes(r *gin.Engine, authMW gin.HandlerFunc, d routeDeps) {
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		h := d.API

		callsGroup := v1.Group("/calls")
		callsGroup.Use(httpapi.RequireDirectorAndAnyRole(rbac.RoleDirector, rbac.RoleManager)...)
		{
			callsGroup.GET("", h.ListCalls)
			callsGroup.PATCH("/:id", h.AssignClient)
			callsGroup.POST("/:id/link-client", h.LinkClient)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.DELETE("/tenant-cache/:phone", h.InvalidateGymLine)
		}

		// Reports are director-only; admin bypasses as everywhere.
		reports := v1.Group("/reports")
		reports.Use(httpapi.RequireDirectorAndAnyRole(rbac.RoleDirector)...)
		{
			reports.GET("/calls", h.CallsReport)
		}
	}
}
