package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter assembles the gin engine with request logging and all routes.
func NewRouter(h *Handlers, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/offers/:id/action", h.CustomerAction)
		v1.POST("/offers/:id/override", h.ManualOverride)
		v1.GET("/offers/:id/history", h.History)
		v1.GET("/offer-actions", h.LinkAction)
	}

	r.POST("/internal/sweep", h.TriggerSweep)

	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
