package http

import (
	"time"

	"github.com/gin-gonic/gin"
)

const tenantIDKey = "tenant_id"

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// tenantMiddleware resolves :tenant_id before any tenant-scoped handler runs
func (s *Server) tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := s.services.Tenants.GetTenant(c.Request.Context(), c.Param("tenant_id"))
		if err != nil {
			respondError(c, s.logger, err)
			c.Abort()
			return
		}
		c.Set(tenantIDKey, tenant.ID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantIDKey)
}
