package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/layer-3/flowauth/internal/ratelimit"
	"github.com/layer-3/flowauth/service"
	"github.com/rs/zerolog/log"
)

const (
	addressKey = "userAddress"
	tokenKey   = "sessionToken"

	requestIDHeader = "X-Request-ID"
)

// RequestLogger attaches a request scoped zerolog logger and logs every request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// RateLimit rejects clients that exceed their per-IP budget
func RateLimit(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorEnvelope(MsgTooManyRequests))
			return
		}
		c.Next()
	}
}

// AuthMiddleware creates middleware that validates session credentials
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope(MsgUnauthorized))
			return
		}

		session, err := authService.ValidateSession(c.Request.Context(), token)
		if err != nil {
			status, body := envelopeFor(err)
			if status == http.StatusInternalServerError {
				logging.FromContext(c.Request.Context()).Error().Err(err).Msg("session validation failed")
			}
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(addressKey, session.Address)
		c.Set(tokenKey, token)

		c.Next()
	}
}
