package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerKey = "caller"

// authenticate resolves the caller once per request and stores it on both
// the gin and the request context.
func authenticate(resolver identity.Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := resolver.Resolve(c.Request)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrInvalidCredential) {
				respondError(c, apperr.Unauthenticated(err.Error()))
				return
			}
			respondError(c, fmt.Errorf("resolve caller: %w", err))
			return
		}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(identity.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

func requireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		for _, role := range roles {
			if caller.Is(role) {
				c.Next()
				return
			}
		}
		respondError(c, apperr.Forbidden(fmt.Sprintf("role %q may not perform this action", caller.Role)))
	}
}

func callerFrom(c *gin.Context) identity.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(identity.Caller); ok {
			return caller
		}
	}
	return identity.Caller{}
}

// recovery turns panics into the internal error envelope
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		respondError(c, fmt.Errorf("panic: %v", recovered))
	})
}

// requestLogger writes one structured line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		util.GetLogger().Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
