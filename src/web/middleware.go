package web

import (
	"fmt"
	"time"

	"celebrity-detector-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware 为每个请求分配ID，并记录访问日志
func RequestIDMiddleware(logger *utils.Logger) gin.HandlerFunc {
	tagged := logger.WithTag("http")
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		tagged.Debug(fmt.Sprintf("%s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status()),
			map[string]interface{}{
				"request_id": id,
				"latency_ms": time.Since(start).Milliseconds(),
				"client_ip":  c.ClientIP(),
			})
	}
}

// RequestID 当前请求的ID
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// NewRouter 创建带恢复和请求ID中间件的gin引擎
func NewRouter(logger *utils.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(logger))
	return router
}
