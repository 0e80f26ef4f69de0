// Package api holds gin middleware shared by the session endpoint and
// the management endpoint (spec §6.1/§6.2), adapted from the teacher's
// router.go: CORS/no-cache headers, secret-redacting request logging,
// and a HEAD-probe handler survive verbatim in shape; routing itself
// and authentication are new, since SILC splits traffic across two very
// differently shaped route sets instead of one monolithic router.
package api

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSMiddleware adds CORS headers to all responses.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NoCacheMiddleware adds no-cache headers so session output is never
// served stale from an intermediary cache.
func NoCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Writer.Header().Set("Pragma", "no-cache")
		c.Writer.Header().Set("Expires", "0")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		c.Next()
	}
}

// HeadHandler returns a simple 200 OK for HEAD requests probing route existence.
func HeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// sensitiveQueryParams are redacted from logged request paths.
var sensitiveQueryParams = []string{
	"token", "access_token", "refresh_token", "auth_token", "bearer",
	"password", "passwd", "pwd",
	"secret", "client_secret", "api_secret",
	"key", "private_key", "encryption_key",
	"authorization", "auth",
	"session_id", "sessionid",
}

// redactSecrets redacts sensitive query parameter values from a request path.
func redactSecrets(pathWithQuery string) string {
	parts := strings.SplitN(pathWithQuery, "?", 2)
	if len(parts) != 2 {
		return pathWithQuery
	}
	basePath, queryString := parts[0], parts[1]

	values, err := url.ParseQuery(queryString)
	if err != nil {
		return redactQueryPatterns(pathWithQuery)
	}

	hasSecrets := false
	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				hasSecrets = true
			}
		}
	}
	if !hasSecrets {
		return pathWithQuery
	}

	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[REDACTED]")
			}
		}
	}
	return basePath + "?" + strings.ReplaceAll(values.Encode(), url.QueryEscape("[REDACTED]"), "[REDACTED]")
}

func redactQueryPatterns(pathWithQuery string) string {
	result := pathWithQuery
	for _, param := range sensitiveQueryParams {
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)[^&\s]*`)
		result = pattern.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

// LogrusMiddleware logs one structured line per request, redacting
// secret-bearing query parameters first (spec §6.4 requires token-based
// auth, so session endpoints commonly carry ?token= in the URL).
func LogrusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		sanitizedPath := redactSecrets(path)

		start := time.Now()
		c.Next()
		latency := int(math.Ceil(float64(time.Since(start).Nanoseconds()) / 1e6))
		statusCode := c.Writer.Status()

		if len(c.Errors) > 0 {
			logrus.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		msg := fmt.Sprintf("%s %s %d %dms", c.Request.Method, sanitizedPath, statusCode, latency)
		switch {
		case statusCode >= http.StatusInternalServerError:
			logrus.Error(msg)
		case statusCode >= http.StatusBadRequest:
			logrus.Warn(msg)
		default:
			logrus.Info(msg)
		}
	}
}

// IsLoopback reports whether addr (a net.Conn/http.Request remote
// address, host:port or bare IP) refers to the loopback interface (spec
// §6.4: "Loopback peers bypass").
func IsLoopback(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// TokenAuthMiddleware enforces spec §6.4: loopback peers bypass
// unconditionally; everyone else must present token via
// "Authorization: Bearer <token>" or "?token=", compared in constant
// time. An empty expectedToken disables the check entirely (no token
// was configured for this session).
func TokenAuthMiddleware(expectedToken func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := expectedToken()
		if token == "" {
			c.Next()
			return
		}
		if IsLoopback(c.Request.RemoteAddr) {
			c.Next()
			return
		}

		presented := bearerFromRequest(c.Request)
		if !constantTimeEqual(presented, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid or missing token"})
			return
		}
		c.Next()
	}
}

func bearerFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
