package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-quake-alerts/internal/core"
)

// NewRouter builds the gin engine serving the command surface.
func NewRouter(app *core.App, rps int) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	if rps > 0 {
		router.Use(RateLimitMiddleware(rps))
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := NewHandler(app)
	handler.RegisterRoutes(router)
	return router
}
