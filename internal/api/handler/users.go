package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/store"
	"github.com/ngslab/seqportal/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// NewListUsersHandler returns the handler for GET /api/v1/admin/users.
func NewListUsersHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := st.ListUsers(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, users)
	}
}

// NewCreateUserHandler returns the handler for POST /api/v1/admin/users.
func NewCreateUserHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string  `json:"username"`
			Email    *string `json:"email"`
			Password string  `json:"password"`
			Role     string  `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Username == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "username is required", nil)
			return
		}
		if len(req.Password) < minPasswordLen {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"password must be at least 8 characters", nil)
			return
		}
		role := req.Role
		if role == "" {
			role = models.RoleUser
		}
		if role != models.RoleUser && role != models.RoleAdmin {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to hash password", nil)
			return
		}

		user := &models.User{
			ID:           uuid.New(),
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         role,
			CreatedAt:    time.Now().UTC(),
		}
		if err := st.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_RESOURCE",
					"Username or email already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Created(w, user)
	}
}

// NewUpdateUserHandler returns the handler for PUT /api/v1/admin/users/{userID}.
// Only email and role can change here; passwords go through the dedicated
// endpoints.
func NewUpdateUserHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "userID must be a valid UUID", nil)
			return
		}

		var req struct {
			Email *string `json:"email"`
			Role  *string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		user, err := st.GetUser(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "User not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if req.Email != nil {
			user.Email = req.Email
		}
		if req.Role != nil {
			if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role", nil)
				return
			}
			user.Role = *req.Role
		}

		if err := st.UpdateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_RESOURCE", "Email already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, user)
	}
}

// NewDeleteUserHandler returns the handler for DELETE /api/v1/admin/users/{userID}.
// Deleting a user cascades to their jobs.
func NewDeleteUserHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "userID must be a valid UUID", nil)
			return
		}

		// An admin locking themselves out via self-deletion is an easy
		// mistake to make and a hard one to recover from.
		if selfID, ok := mw.GetUserID(r); ok && selfID == id {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"cannot delete your own account", nil)
			return
		}

		// Deleting cascades to jobs, so a user mid-analysis would lose the
		// record of the run the pipeline is still writing to.
		if running, err := st.CountRunningJobsByUser(r.Context(), id); err == nil && running > 0 {
			response.Error(w, http.StatusConflict, "JOB_CONFLICT",
				"user has a running analysis", nil)
			return
		}

		if err := st.DeleteUser(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "User not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]string{"status": "deleted"})
	}
}

// NewChangePasswordHandler returns the handler for POST /api/v1/users/me/password.
// Users change their own password after proving they know the current one.
func NewChangePasswordHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if len(req.NewPassword) < minPasswordLen {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"password must be at least 8 characters", nil)
			return
		}

		user, err := st.GetUser(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS",
				"Current password is incorrect", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to hash password", nil)
			return
		}
		user.PasswordHash = string(hash)

		if err := st.UpdateUser(r.Context(), user); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]string{"status": "password changed"})
	}
}
