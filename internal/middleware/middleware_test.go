package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]models.Principal

func (s stubVerifier) Verify(_ context.Context, token string) (models.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return models.Principal{}, apperr.Unauthenticated("Invalid or expired token")
}

type stubResolver struct {
	grants map[string]models.Grants
	err    error
}

func (s stubResolver) Resolve(_ context.Context, userID string) (models.Grants, error) {
	if s.err != nil {
		return models.Grants{}, s.err
	}
	if g, ok := s.grants[userID]; ok {
		return g, nil
	}
	return models.DefaultGrants(), nil
}

var (
	verifier = stubVerifier{
		"admin-token":    {ID: "admin-1"},
		"seller-token":   {ID: "seller-1"},
		"customer-token": {ID: "customer-1"},
	}
	resolver = stubResolver{grants: map[string]models.Grants{
		"admin-1": models.NewGrants([]string{models.RoleAdmin}, nil),
		"seller-1": models.NewGrants([]string{models.RoleSeller},
			[]string{models.PermCreateProduct, models.PermReadProduct}),
	}}
)

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func guardedRouter(res GrantResolver) *gin.Engine {
	r := gin.New()
	ok := func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID})
	}
	auth := r.Group("/", AuthRequired(verifier, res, zap.NewNop()))
	auth.GET("/me", ok)
	auth.POST("/products", RequirePermission(models.PermCreateProduct), ok)
	auth.DELETE("/products/1", RequirePermission(models.PermDeleteProduct), ok)
	auth.GET("/sellers", RequireRole(models.RoleSeller, models.RoleAdmin), ok)
	auth.GET("/admin", RequireAdmin(), ok)
	return r
}

func TestAuthRequired(t *testing.T) {
	r := guardedRouter(resolver)

	w := do(r, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", errorOf(t, w))

	w = do(r, http.MethodGet, "/me", "customer-token", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "customer-1")
}

func TestAuthRequiredFailsClosedOnResolverError(t *testing.T) {
	r := guardedRouter(stubResolver{err: assert.AnError})

	w := do(r, http.MethodGet, "/me", "admin-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermission(t *testing.T) {
	r := guardedRouter(resolver)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"seller creates", http.MethodPost, "/products", "seller-token", http.StatusOK},
		{"seller lacks delete", http.MethodDelete, "/products/1", "seller-token", http.StatusForbidden},
		{"customer cannot create", http.MethodPost, "/products", "customer-token", http.StatusForbidden},
		{"admin bypasses permissions", http.MethodDelete, "/products/1", "admin-token", http.StatusOK},
		{"anonymous is unauthenticated", http.MethodPost, "/products", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.token, "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := guardedRouter(resolver)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/sellers", "seller-token", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/sellers", "admin-token", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/sellers", "customer-token", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "seller-token", "").Code)
}

func newLimiter(t *testing.T, cfg config.RateLimitSettings) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRateLimiter(cache.NewStore(rdb), cfg, zap.NewNop()), mr
}

func TestLoginRateLimit(t *testing.T) {
	rl, mr := newLimiter(t, config.RateLimitSettings{LoginMaxAttempts: 2, LoginCooldown: 15 * time.Minute})

	r := gin.New()
	r.POST("/login", rl.Login(), func(c *gin.Context) {
		var in struct{ Email, Password string }
		require.NoError(t, c.ShouldBindJSON(&in))
		if in.Password != "good" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": "t"})
	})

	bad := `{"email":"Jane@example.com","password":"bad"}`
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/login", "", bad).Code)
	attempts, err := mr.Get("login_attempts:jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", attempts)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/login", "", bad).Code)

	// seuil atteint : blocage, même avec le bon mot de passe
	w := do(r, http.MethodPost, "/login", "", `{"email":"jane@example.com","password":"good"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, mr.Exists("login_cooldown:jane@example.com"))

	w = do(r, http.MethodPost, "/login", "", `{"email":"jane@example.com","password":"good"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	mr.FastForward(16 * time.Minute)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "", `{"email":"jane@example.com","password":"good"}`).Code)
}

func TestRegisterRateLimit(t *testing.T) {
	rl, _ := newLimiter(t, config.RateLimitSettings{RegisterMaxAttempts: 1, RegisterCooldown: time.Hour})

	r := gin.New()
	r.POST("/register", rl.Register(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/register", "", "{}").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/register", "", "{}").Code)
}

func TestAPIRateLimit(t *testing.T) {
	rl, mr := newLimiter(t, config.RateLimitSettings{APIMaxRequests: 2, APIWindow: time.Minute})

	r := gin.New()
	r.GET("/ping", rl.API(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", "", "").Code)

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", "").Code)
}

func TestAPIRateLimitFailsOpen(t *testing.T) {
	rl, mr := newLimiter(t, config.RateLimitSettings{APIMaxRequests: 1, APIWindow: time.Minute})
	mr.Close()

	r := gin.New()
	r.GET("/ping", rl.API(), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", "").Code)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, e models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func TestAuditFailures(t *testing.T) {
	audit := &recordingAuditor{}
	r := gin.New()
	auth := r.Group("/", AuthRequired(verifier, resolver, zap.NewNop()))
	auth.DELETE("/products/:id",
		AuditFailures(audit, "PRODUCT_DELETE", "product"),
		RequirePermission(models.PermDeleteProduct),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, "/products/9", "seller-token", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/products/9", "admin-token", "").Code)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "seller-1", audit.entries[0].UserID)
	assert.Equal(t, "9", audit.entries[0].ResourceID)
	assert.False(t, audit.entries[0].Success)
}

func TestRequestLoggerAndTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), Timeout(50*time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}
