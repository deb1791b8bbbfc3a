package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	metricsx "github.com/tanpawarit/parcel-scout/pkg/metrics"
)

// NewRouter registers:
//
//	POST /chat     - one conversation turn
//	POST /evaluate - full evaluation of a listing URL
//	POST /scout/run - start a batch scout run
//	GET  /healthz  - liveness
//	GET  /metrics  - prometheus metrics
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.POST("/chat", h.HandleChat)
	router.POST("/evaluate", h.HandleEvaluate)
	router.POST("/scout/run", h.HandleScoutRun)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metricsx.Handler()))

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(started)).
			Msg("http request")
	}
}
