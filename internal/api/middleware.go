package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/genai-cost-planner/genai-cost-planner/internal/logging"
	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/storage"
)

// validRequestIDRegex allows alphanumeric, dots, underscores, and hyphens up to 128 chars.
var validRequestIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

func isValidRequestID(id string) bool {
	return id != "" && validRequestIDRegex.MatchString(id)
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if !isValidRequestID(requestID) {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route pattern keeps /presets/:name from exploding label cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.InfoContext(c.Request.Context(), "request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.ErrorContext(c.Request.Context(), "panic recovered",
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())))

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:     "internal server error",
					RequestID: c.GetString("request_id"),
				})
			}
		}()
		c.Next()
	}
}

func (s *Server) bodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	anyOrigin := len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			switch {
			case anyOrigin:
				c.Header("Access-Control-Allow-Origin", "*")
			case slices.Contains(s.allowedOrigins, origin):
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// maxTrackedClients bounds the per-client limiter table
const maxTrackedClients = 10000

// clientLimiter hands out one token bucket per client. Least recently seen
// clients are evicted once the table is full.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func newClientLimiter(rps float64, burst, size int) (*clientLimiter, error) {
	clients, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create client limiter table: %w", err)
	}
	return &clientLimiter{
		limit:   rate.Limit(rps),
		burst:   max(1, burst),
		clients: clients,
	}, nil
}

func (l *clientLimiter) allow(client string) bool {
	limiter, ok := l.clients.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		// Another request may have raced us; keep whichever landed first
		if prev, found, _ := l.clients.PeekOrAdd(client, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		c.Request = c.Request.WithContext(logging.WithClientID(c.Request.Context(), client))

		if !s.limiter.allow(client) {
			metrics.RecordRateLimited()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "rate limit exceeded",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}

// apiKeyFromRequest reads X-API-Key, falling back to a bearer token
func apiKeyFromRequest(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := apiKeyFromRequest(c)
		if secret == "" {
			metrics.RecordAuthFailure("missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "API key required",
				RequestID: c.GetString("request_id"),
			})
			return
		}

		key, err := s.keys.Verify(c.Request.Context(), secret)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrInvalidKey):
				metrics.RecordAuthFailure("invalid")
			case errors.Is(err, storage.ErrKeyRevoked):
				metrics.RecordAuthFailure("revoked")
			default:
				s.logger.ErrorContext(c.Request.Context(), "failed to verify API key", slog.String("error", err.Error()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:     "failed to verify API key",
					RequestID: c.GetString("request_id"),
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     err.Error(),
				RequestID: c.GetString("request_id"),
			})
			return
		}

		c.Set("key_id", key.ID)
		c.Request = c.Request.WithContext(logging.WithKeyID(c.Request.Context(), key.ID))
		c.Next()
	}
}
