package main

import (
	"net/http"

	"voice-nerve/internal/audio"
	"voice-nerve/internal/auth"
	"voice-nerve/internal/calls"
	"voice-nerve/internal/session"
	"voice-nerve/internal/telephony"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Auth    *auth.Manager
	Flow    telephony.FlowHandler
	Status  telephony.StatusHandler
	Calls   calls.Handler
	Audio   *audio.Cache
	Session session.Store
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		sessions, _ := d.Session.Len(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "ok", "live_sessions": sessions})
	})

	// Provider webhooks (public). The provider cannot carry bearer tokens;
	// the callback URL itself is the shared secret.
	r.GET("/webhooks/exotel/flow", d.Flow.Handle)
	r.HEAD("/webhooks/exotel/flow", d.Flow.Handle)
	r.POST("/webhooks/exotel/status", d.Status.Handle)

	// Audio is fetched anonymously by the provider's media proxy.
	if d.Audio != nil {
		r.GET("/audio/:id", audio.Handler{Cache: d.Audio}.Serve)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireServiceToken(d.Auth))
	{
		v1.POST("/calls/vendor-confirmation", d.Calls.VendorConfirmation)
		v1.POST("/calls/rider-assignment", d.Calls.RiderAssignment)
		v1.GET("/calls/active", d.Calls.ListActive)

		if d.Audio != nil {
			h := audio.Handler{Cache: d.Audio}
			v1.GET("/audio/cache", h.ListCache)
			v1.POST("/audio/preload", h.Preload)
		}
	}
}
