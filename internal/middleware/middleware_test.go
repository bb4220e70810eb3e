package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type adminSet map[uint]bool

func (a adminSet) IsAdmin(_ context.Context, id uint) (bool, error) {
	if id == 99 {
		return false, errors.New("db down")
	}
	return a[id], nil
}

func newTestRouter(auth *JWTAuth) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), EnableCORS())
	authed := r.Group("/", auth.RequireAuth())
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	admins := adminSet{1: true}
	authed.GET("/admin", RequireAdmin(admins), func(c *gin.Context) { c.Status(http.StatusOK) })
	authed.GET("/user", RequireNormalUser(admins), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenRoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)
	token, err := auth.GenerateToken(42)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	_, err = NewJWTAuth("other-secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	expired, err := NewJWTAuth("test-secret", -time.Minute).GenerateToken(42)
	require.NoError(t, err)
	_, err = auth.ValidateToken(expired)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)
	r := newTestRouter(auth)
	token, err := auth.GenerateToken(7)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "garbage").Code)

	w := do(r, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())

	w = do(r, http.MethodGet, "/me?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleGuards(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)
	r := newTestRouter(auth)
	admin, _ := auth.GenerateToken(1)
	user, _ := auth.GenerateToken(2)
	broken, _ := auth.GenerateToken(99)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin", admin).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", user).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/user", admin).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/user", user).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/admin", broken).Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	r := newTestRouter(NewJWTAuth("s", time.Hour))

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	keep := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, keep)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, keep, w.Header().Get(RequestIDHeader))
}
