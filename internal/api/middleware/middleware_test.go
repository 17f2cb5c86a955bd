package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger), RoleMiddleware())
	return r
}

func TestCorrelationIDHeader(t *testing.T) {
	r := newEngine(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	var fromCtx string
	r.GET("/x", func(c *gin.Context) {
		fromCtx = CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "job-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "job-42", w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "job-42", fromCtx)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "bad id\nwith newline")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	got := w.Header().Get("X-Correlation-ID")
	assert.Len(t, got, 36)
	assert.Equal(t, got, fromCtx)
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, Can(RoleAdmin, PermDesign))
	assert.True(t, Can(RoleAdmin, PermPrint))
	assert.True(t, Can(RoleViewer, PermView))
	assert.False(t, Can(RoleViewer, PermPrint))
	assert.False(t, Can(Role("guest"), PermView))

	r := newEngine(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r.POST("/design", RequirePermission(PermDesign), func(c *gin.Context) {
		role, _ := RoleFromContext(c)
		c.String(http.StatusOK, string(role))
	})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusForbidden},
		{"viewer", http.StatusForbidden},
		{" Admin ", http.StatusOK},
		{"guest", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/design", nil)
		if tc.header != "" {
			req.Header.Set(RoleHeader, tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.header)
	}
}

func TestLoggerLevelsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newEngine(logger)
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/boom", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"ERROR"`)
	assert.Contains(t, lines[0], `"path":"/boom"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"role":"viewer"`)
}

func TestInternalSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	unconfigured := gin.New()
	unconfigured.POST("/i", InternalSecretMiddleware(" "), ok)
	w := httptest.NewRecorder()
	unconfigured.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/i", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r := gin.New()
	r.POST("/i", InternalSecretMiddleware("s3cret"), ok)
	for secret, status := range map[string]int{"": http.StatusUnauthorized, "nope": http.StatusUnauthorized, "s3cret": http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/i", nil)
		if secret != "" {
			req.Header.Set("X-Internal-Secret", secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, secret)
	}
}
