package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	"github.com/sshcollectorpro/l2collector/api/handler"
	"github.com/sshcollectorpro/l2collector/internal/database"
	"github.com/sshcollectorpro/l2collector/pkg/cache"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
	"github.com/sshcollectorpro/l2collector/pkg/metrics"
)

// SetupRouter 设置路由
func SetupRouter(factService handler.FactsService, factCache *cache.FactCache, m *metrics.Collector) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(m.GinMiddleware())

	checks := map[string]handler.HealthCheck{
		"database": database.Health,
	}
	if factCache.Enabled() {
		checks["redis"] = factCache.Health
	}
	factsHandler := handler.NewFactsHandler(factService, checks)

	// 根路径
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":      "L2 Collector",
			"version":   "1.0.0",
			"status":    "running",
			"platforms": collect.Platforms(),
		})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", factsHandler.Health)

		facts := v1.Group("/facts")
		{
			facts.POST("/parse", factsHandler.Parse)
			facts.POST("/gather", factsHandler.Gather)
			facts.GET("/latest", factsHandler.Latest)
		}
	}

	// 404处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     statusCode,
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if statusCode >= 500 {
			entry.Error("HTTP Error")
			return
		}
		if statusCode >= 400 {
			entry.Warn("HTTP Request")
			return
		}
		entry.Info("HTTP Request")
	}
}
