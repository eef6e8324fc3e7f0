package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// NewLoginHandler returns the handler for POST /api/v1/auth/login. It
// verifies the password against the stored bcrypt hash and issues a session
// token.
func NewLoginHandler(st store.Store, auth *mw.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Username == "" || req.Password == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "username and password are required", nil)
			return
		}

		user, err := st.GetUserByUsername(r.Context(), req.Username)
		if errors.Is(err, store.ErrNotFound) {
			// Same answer as a wrong password, so usernames cannot be probed.
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}

		token, err := auth.Issue(r.Context(), user)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", nil)
			return
		}

		response.JSON(w, map[string]any{
			"token": token,
			"user": map[string]any{
				"id":       user.ID,
				"username": user.Username,
				"role":     user.Role,
			},
		})
	}
}

// NewLogoutHandler returns the handler for POST /api/v1/auth/logout.
func NewLogoutHandler(auth *mw.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.TokenFromRequest(r)
		if token != "" {
			if err := auth.Revoke(r.Context(), token); err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to end session", nil)
				return
			}
		}
		response.JSON(w, map[string]string{"status": "logged out"})
	}
}
