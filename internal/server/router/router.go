package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.AttendanceHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	// Names arrive URL-encoded in path segments.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/api", noCacheMiddleware())
	{
		api.GET("/status", handler.Status)
		api.POST("/vote", handler.Vote)
		api.POST("/reset/:meal", handler.ResetMeal)
		api.POST("/reset-all", handler.ResetAll)

		api.GET("/names", handler.ListNames)
		api.GET("/preset-names", handler.ListNames)
		api.POST("/names", handler.AddName)
		api.PUT("/names/:oldName", handler.RenameName)
		api.DELETE("/names/:name", handler.DeleteName)

		api.GET("/export-csv", handler.ExportCSV)
		api.GET("/backup-files", handler.Backup)
		api.POST("/export-sheet", handler.PublishSheet)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

// noCacheMiddleware stops browsers from serving stale attendance.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
