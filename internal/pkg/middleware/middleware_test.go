package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/pkg/apperr"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func newToken(t *testing.T, userID string, role int, perms ...string) string {
	t.Helper()
	token, _, err := utils.GenerateToken(testSecret, userID, role, perms, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware(), AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		uid, _ := CurrentUserID(c)
		c.String(http.StatusOK, uid)
	})

	t.Run("Missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), apperr.CodeUnauthorized)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, _, err := utils.GenerateToken("another-secret-another-secret-xx", "u1", utils.RoleUser, nil, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+newToken(t, "u1", utils.RoleUser))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}

func TestRequirePermission(t *testing.T) {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret), RequirePermission(PermOrdersManage))
	r.PATCH("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name  string
		token string
		code  int
	}{
		{"plain user", newToken(t, "u1", utils.RoleUser), http.StatusForbidden},
		{"user with permission", newToken(t, "u2", utils.RoleUser, PermOrdersManage), http.StatusOK},
		{"admin", newToken(t, "u3", utils.RoleAdmin), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/orders", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), apperr.CodeForbidden)
			}
		})
	}
}

func TestSensitiveRateLimiterFallback(t *testing.T) {
	limiter := NewSensitiveRateLimiter(nil, 2, time.Minute, nil)

	r := gin.New()
	r.Use(AuthMiddleware(testSecret), limiter.Middleware("pago-movil"))
	r.POST("/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	token := newToken(t, "user-a", utils.RoleUser)
	send := func(tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send(token).Code)
	assert.Equal(t, http.StatusOK, send(token).Code)

	w := send(token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), apperr.CodeRateLimited)

	// 限流按用户隔离
	assert.Equal(t, http.StatusOK, send(newToken(t, "user-b", utils.RoleUser)).Code)
}
