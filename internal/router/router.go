package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/caseforge/backend/config"
	"github.com/caseforge/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	testCaseHandler *handler.TestCaseHandler,
	batchHandler *handler.BatchHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	// Batch status payloads carry full test-case bodies; compress them.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		testcases := api.Group("/testcases")
		{
			testcases.POST("/generate", testCaseHandler.Generate)
			testcases.GET("", testCaseHandler.List)
			testcases.GET("/:id", testCaseHandler.Get)
			testcases.DELETE("/:id", testCaseHandler.Delete)
		}

		batches := api.Group("/batches")
		{
			batches.POST("", batchHandler.Start)
			batches.GET("/:id", batchHandler.GetStatus)
			batches.POST("/:id/features/:featureId/retry", batchHandler.RetryFeature)
			batches.DELETE("/:id/cases/:caseId", batchHandler.DeleteCase)
			batches.GET("/:id/export.csv", batchHandler.ExportCSV)
		}
	}

	return r
}
