package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/cache"
	"github.com/ngslab/seqportal/pkg/models"
)

const sessionTokenBytes = 32

// session is the cached representation of a logged-in user.
type session struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// Auth issues opaque session tokens at login and resolves them back to the
// user on every request. Tokens live only in the cache; expiry is the cache
// entry's TTL.
type Auth struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewAuth creates the session middleware. ttl bounds how long a login stays
// valid without re-authentication.
func NewAuth(c cache.Cache, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{cache: c, ttl: ttl}
}

// Issue creates a session token for the user.
func (a *Auth) Issue(ctx context.Context, user *models.User) (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	payload, err := json.Marshal(session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return "", err
	}
	if err := a.cache.Set(ctx, cache.SessionKey(token), payload, a.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Revoke ends the session behind the token. Unknown tokens are a no-op.
func (a *Auth) Revoke(ctx context.Context, token string) error {
	return a.cache.Delete(ctx, cache.SessionKey(token))
}

// Authenticate resolves the Bearer token to a session and sets the user in
// the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		payload, found, err := a.cache.Get(r.Context(), cache.SessionKey(token))
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate session", nil)
			return
		}
		if !found {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Session expired or unknown", nil)
			return
		}

		var s session
		if err := json.Unmarshal(payload, &s); err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Session expired or unknown", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), s.UserID, s.Username, s.Role)))
	})
}

// RequireAdmin rejects requests whose session does not carry the admin role.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := GetUserRole(r)
		if !ok || role != models.RoleAdmin {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Admin privileges required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest extracts the Bearer session token, or "" when absent.
func TokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
