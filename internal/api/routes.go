package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CryptoSentinel/internal/scheduler"
)

// StatusProvider exposes the scheduler's last cycle.
type StatusProvider interface {
	Status() scheduler.Status
}

// SetupRouter serves /healthz and /metrics.
func SetupRouter(sp StatusProvider) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		st := sp.Status()
		code := http.StatusOK
		if !st.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     http.StatusText(code),
			"last_cycle": st,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
