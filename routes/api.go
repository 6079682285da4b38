package routes

import (
	"net/http"

	"github.com/address-resolver/app/controllers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupAPIRoutes thiết lập tất cả API routes
func SetupAPIRoutes(router *gin.Engine, ctrl Controllers) {
	v1 := router.Group("/v1")
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("/resolve", ctrl.Address.Resolve)
			addresses.GET("/suggest", ctrl.Address.Suggest)
			addresses.POST("/jobs", ctrl.Address.CreateJob)
			addresses.GET("/jobs/:jobID/status", ctrl.Address.GetJobStatus)
			addresses.GET("/jobs/:jobID/results", ctrl.Address.GetJobResults)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/seed", ctrl.Admin.SeedReference)
			admin.GET("/reference", ctrl.Admin.GetReferenceInfo)
			admin.POST("/reference/reload", ctrl.Admin.Reload)
			admin.POST("/aliases", ctrl.Admin.AddAlias)
			admin.POST("/meili/publish", ctrl.Admin.PublishIndex)
			admin.POST("/cache/invalidate", ctrl.Admin.InvalidateCache)
			admin.GET("/stats", ctrl.Admin.GetStats)
			admin.GET("/export/:type", ctrl.Admin.ExportData)
		}

		if ctrl.Quality != nil {
			quality := v1.Group("/quality")
			{
				quality.POST("/reviews", ctrl.Quality.SubmitReview)
				quality.POST("/classify", ctrl.Quality.Classify)
				quality.GET("/report", ctrl.Quality.GetReport)
			}
		}

		v1.GET("/health", ctrl.Address.HealthCheck)
	}
}

// SetupHealthRoutes thiết lập health check routes
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/ready", addressController.Ready)
	router.GET("/live", addressController.Live)
}

// SetupMetricsRoutes thiết lập metrics routes (cho Prometheus)
func SetupMetricsRoutes(router *gin.Engine, handler http.Handler) {
	if handler == nil {
		return
	}
	router.GET("/metrics", gin.WrapH(handler))
}

// SetupAllRoutes thiết lập middleware và tất cả routes
func SetupAllRoutes(router *gin.Engine, ctrl Controllers, logger *zap.Logger) {
	setupMiddleware(router, logger)

	SetupWebRoutes(router)
	SetupHealthRoutes(router, ctrl.Address)
	SetupAPIRoutes(router, ctrl)
	SetupMetricsRoutes(router, ctrl.Metrics)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

func setupMiddleware(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.Recovery())
	router.Use(controllers.RequestID())
	router.Use(controllers.RequestLogger(logger))
}
