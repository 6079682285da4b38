package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupWebRoutes thiết lập web routes
func SetupWebRoutes(router *gin.Engine) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Address Resolver Service",
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api": "Address Resolver API v1",
				"endpoints": map[string]string{
					"resolve":          "POST /v1/addresses/resolve",
					"suggest":          "GET /v1/addresses/suggest?q=&level=&parent_id=",
					"batch":            "POST /v1/addresses/jobs",
					"job_status":       "GET /v1/addresses/jobs/:jobID/status",
					"job_results":      "GET /v1/addresses/jobs/:jobID/results?format=ndjson&gzip=1",
					"seed":             "POST /v1/admin/seed?dry_run=true&publish=true",
					"reference":        "GET /v1/admin/reference",
					"reload":           "POST /v1/admin/reference/reload",
					"aliases":          "POST /v1/admin/aliases",
					"publish":          "POST /v1/admin/meili/publish",
					"cache_invalidate": "POST /v1/admin/cache/invalidate?reference_version=",
					"stats":            "GET /v1/admin/stats",
					"export":           "GET /v1/admin/export/:type?format=json|csv",
					"reviews":          "POST /v1/quality/reviews",
					"classify":         "POST /v1/quality/classify",
					"report":           "GET /v1/quality/report",
					"health":           "GET /health",
					"metrics":          "GET /metrics",
				},
			})
		})
	}
}
