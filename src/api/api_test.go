package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIsLoopback(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.5:5000":  false,
		"not-an-addr":    false,
	}
	for addr, want := range cases {
		if got := IsLoopback(addr); got != want {
			t.Fatalf("IsLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestTokenAuthMiddlewareEmptyTokenDisablesCheck(t *testing.T) {
	r := gin.New()
	r.Use(TokenAuthMiddleware(func() string { return "" }))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with no configured token, got %d", w.Code)
	}
}

func TestTokenAuthMiddlewareLoopbackBypasses(t *testing.T) {
	r := gin.New()
	r.Use(TokenAuthMiddleware(func() string { return "secret" }))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected loopback bypass, got %d", w.Code)
	}
}

func TestTokenAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := gin.New()
	r.Use(TokenAuthMiddleware(func() string { return "secret" }))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestTokenAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	r := gin.New()
	r.Use(TokenAuthMiddleware(func() string { return "secret" }))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x?token=secret", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid query token, got %d", w.Code)
	}
}

func TestRedactSecretsRedactsTokenQueryParam(t *testing.T) {
	got := redactSecrets("/run?cmd=ls&token=abc123")
	if got == "/run?cmd=ls&token=abc123" {
		t.Fatalf("expected token to be redacted, got unchanged path %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected [REDACTED] marker in %q", got)
	}
	if strings.Contains(got, "abc123") {
		t.Fatalf("token value leaked in redacted path: %q", got)
	}
}

func TestRedactSecretsLeavesPlainPathsAlone(t *testing.T) {
	got := redactSecrets("/sessions/alpha-bear-3")
	if got != "/sessions/alpha-bear-3" {
		t.Fatalf("expected path without query untouched, got %q", got)
	}
}

func TestQueryIntFallsBackOnMissingOrBad(t *testing.T) {
	r := gin.New()
	var got int
	r.GET("/x", func(c *gin.Context) {
		got = QueryInt(c, "n", 42)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got != 42 {
		t.Fatalf("expected default 42 for missing param, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x?n=7", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got != 7 {
		t.Fatalf("expected parsed value 7, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x?n=notanumber", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got != 42 {
		t.Fatalf("expected fallback 42 for unparseable param, got %d", got)
	}
}

func TestQueryBoolFallsBackOnMissingOrBad(t *testing.T) {
	r := gin.New()
	var got bool
	r.GET("/x", func(c *gin.Context) {
		got = QueryBool(c, "b", true)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x?b=false", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got != false {
		t.Fatalf("expected parsed false, got %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got != true {
		t.Fatalf("expected default true for missing param, got %v", got)
	}
}
