package api

import (
	"time"

	"docqa/internal/config"
	"docqa/pkg/circuitbreaker"
	"docqa/pkg/httpmiddleware"
	"docqa/pkg/logger"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the configured middleware chain and all routes.
func NewRouter(cfg *config.AppConfig, api *API, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), httpmiddleware.RequestLogger(log))

	mw := cfg.Middleware
	if mw.RateLimiter.Enabled {
		router.Use(httpmiddleware.RateLimit(httpmiddleware.NewClientLimiter(mw.RateLimiter.Rate, mw.RateLimiter.Burst)))
	}
	if mw.CircuitBreaker.Enabled {
		router.Use(httpmiddleware.CircuitBreak(circuitbreaker.New(circuitbreaker.Settings{
			FailureThreshold: mw.CircuitBreaker.FailureThreshold,
			SuccessThreshold: mw.CircuitBreaker.SuccessThreshold,
			Timeout:          config.Duration(mw.CircuitBreaker.Timeout, 30*time.Second),
		})))
	}
	router.Use(httpmiddleware.Timeout(config.Duration(cfg.Server.RequestTimeout, 120*time.Second)))

	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes registers all the routes for the document QA service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)

	// All API routes are under /api/v1
	v1 := router.Group("/api/v1")
	{
		v1.POST("/documents", api.UploadDocumentsHandler)
		v1.GET("/documents", api.ListDocumentsHandler)
		v1.DELETE("/documents", api.DeleteDocumentsHandler)
		v1.POST("/ask", api.AskHandler)
		v1.GET("/questions", api.ListQuestionsHandler)
		v1.POST("/index/reset", api.ResetIndexHandler)
	}
}
