package router

import (
	"rotapool/app/handler"
	"rotapool/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	poolHandler   *handler.PoolHandler
	healthHandler *handler.HealthHandler

	apiMiddleware []gin.HandlerFunc
}

// NewRouter creates a new Router. apiMiddleware runs on /api/v1 only, in order.
func NewRouter(poolHandler *handler.PoolHandler, healthHandler *handler.HealthHandler, apiMiddleware ...gin.HandlerFunc) *Router {
	return &Router{
		poolHandler:   poolHandler,
		healthHandler: healthHandler,
		apiMiddleware: apiMiddleware,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())

	api := engine.Group("/api/v1")
	api.Use(r.apiMiddleware...)
	{
		// :pool is accounts or proxies
		p := api.Group("/:pool")
		{
			p.POST("/resources", r.poolHandler.AddResource)
			p.POST("/resources/batch", r.poolHandler.AddResourceBatch)
			p.GET("/resources/:id", r.poolHandler.GetResource)
			p.DELETE("/resources/:id", r.poolHandler.RemoveResource)
			p.PUT("/resources/:id/status", r.poolHandler.SetStatus)
			p.POST("/resources/:id/success", r.poolHandler.ReportSuccess)
			p.POST("/resources/:id/error", r.poolHandler.ReportError)
			p.GET("/resources/:id/events", r.poolHandler.ListEvents)

			p.POST("/acquire", r.poolHandler.Acquire)
			p.GET("/statistics", r.poolHandler.GetStatistics)
		}
	}

	// Health check
	engine.GET("/health", r.healthHandler.Health)
}
