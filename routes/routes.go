package routes

import (
	"github.com/yashrajoria/restaurant-storefront/controllers"
	"github.com/yashrajoria/restaurant-storefront/metrics"
	"github.com/yashrajoria/restaurant-storefront/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the local return listener.
func NewRouter(rc *controllers.ReturnController, m *metrics.CheckoutMetrics, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), limiter.Middleware())

	RegisterReturnRoutes(r, rc)
	r.GET("/healthz", rc.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	return r
}

// RegisterReturnRoutes mounts the gateway success and cancel URLs.
func RegisterReturnRoutes(r *gin.Engine, rc *controllers.ReturnController) {
	checkout := r.Group("/checkout")
	checkout.Use(middleware.SecurityHeaders())

	checkout.GET("/success", rc.Success)
	checkout.GET("/cancel", rc.Cancel)
}
