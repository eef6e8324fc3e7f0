package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/cache"
	"github.com/ngslab/seqportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- failing cache for error paths ---

type failingCache struct{}

func (failingCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Delete(_ context.Context, _ string) error { return errors.New("cache down") }
func (failingCache) Ping(_ context.Context) error             { return errors.New("cache down") }
func (failingCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, errors.New("cache down")
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func testUser(role string) *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Role:     role,
	}
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth(cache.NewMemoryCache(16), time.Hour)
	handler := auth.Authenticate(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_UnknownToken(t *testing.T) {
	auth := mw.NewAuth(cache.NewMemoryCache(16), time.Hour)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer deadbeef")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_IssuedTokenAuthenticates(t *testing.T) {
	auth := mw.NewAuth(cache.NewMemoryCache(16), time.Hour)
	user := testUser(models.RoleUser)

	token, err := auth.Issue(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	var gotID uuid.UUID
	var gotRole string
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = mw.GetUserID(r)
		gotRole, _ = mw.GetUserRole(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, gotID)
	assert.Equal(t, models.RoleUser, gotRole)
}

func TestAuth_RevokedTokenRejected(t *testing.T) {
	auth := mw.NewAuth(cache.NewMemoryCache(16), time.Hour)
	token, err := auth.Issue(context.Background(), testUser(models.RoleUser))
	require.NoError(t, err)
	require.NoError(t, auth.Revoke(context.Background(), token))

	handler := auth.Authenticate(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_CacheErrorIsInternal(t *testing.T) {
	auth := mw.NewAuth(failingCache{}, time.Hour)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer deadbeef")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	auth := mw.NewAuth(cache.NewMemoryCache(16), time.Hour)

	t.Run("admin passes", func(t *testing.T) {
		handler := auth.RequireAdmin(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(mw.SetUser(req.Context(), uuid.New(), "root", models.RoleAdmin))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("regular user is forbidden", func(t *testing.T) {
		handler := auth.RequireAdmin(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(mw.SetUser(req.Context(), uuid.New(), "alice", models.RoleUser))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", errBody(t, w)["code"])
	})

	t.Run("anonymous is forbidden", func(t *testing.T) {
		handler := auth.RequireAdmin(okHandler())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

// ========================================
// RateLimit Middleware Tests
// ========================================

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	rl := mw.NewRateLimit(cache.NewMemoryCache(16), 2)
	handler := rl.Limit(okHandler())
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(mw.SetUser(req.Context(), userID, "alice", models.RoleUser))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(mw.SetUser(req.Context(), userID, "alice", models.RoleUser))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_SeparateUsers(t *testing.T) {
	rl := mw.NewRateLimit(cache.NewMemoryCache(16), 1)
	handler := rl.Limit(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(mw.SetUser(req.Context(), uuid.New(), "alice", models.RoleUser))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(failingCache{}, 1)
	handler := rl.Limit(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(mw.SetUser(req.Context(), uuid.New(), "alice", models.RoleUser))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_PassThroughWithoutUser(t *testing.T) {
	rl := mw.NewRateLimit(cache.NewMemoryCache(16), 1)
	handler := rl.Limit(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestLogger_PassesThrough(t *testing.T) {
	handler := mw.Logger(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
