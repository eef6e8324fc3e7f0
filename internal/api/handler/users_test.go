package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ngslab/seqportal/internal/api/handler"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/store"
	storemock "github.com/ngslab/seqportal/internal/store/mock"
	"github.com/ngslab/seqportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func withUserID(req *http.Request, id uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("userID", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateUserHandler(t *testing.T) {
	t.Run("creates a user with hashed password", func(t *testing.T) {
		var created *models.User
		st := &storemock.Store{
			CreateUserFunc: func(_ context.Context, user *models.User) error {
				created = user
				return nil
			},
		}
		h := handler.NewCreateUserHandler(st)

		body, _ := json.Marshal(map[string]string{
			"username": "bob",
			"password": "hunter2hunter2",
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", bytes.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, created)
		assert.Equal(t, models.RoleUser, created.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("hunter2hunter2")))
		assert.NotContains(t, w.Body.String(), created.PasswordHash)
	})

	t.Run("rejects short passwords", func(t *testing.T) {
		h := handler.NewCreateUserHandler(&storemock.Store{})

		body, _ := json.Marshal(map[string]string{"username": "bob", "password": "short"})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects invalid roles", func(t *testing.T) {
		h := handler.NewCreateUserHandler(&storemock.Store{})

		body, _ := json.Marshal(map[string]string{
			"username": "bob",
			"password": "hunter2hunter2",
			"role":     "superuser",
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate username", func(t *testing.T) {
		st := &storemock.Store{
			CreateUserFunc: func(_ context.Context, _ *models.User) error {
				return store.ErrDuplicateKey
			},
		}
		h := handler.NewCreateUserHandler(st)

		body, _ := json.Marshal(map[string]string{"username": "bob", "password": "hunter2hunter2"})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", bytes.NewReader(body)))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE_RESOURCE", errCode(t, w))
	})
}

func TestUpdateUserHandler(t *testing.T) {
	user := userWithPassword(t, "bob", "pw123456")

	t.Run("updates role", func(t *testing.T) {
		var updated *models.User
		st := &storemock.Store{
			GetUserFunc: func(_ context.Context, _ uuid.UUID) (*models.User, error) { return user, nil },
			UpdateUserFunc: func(_ context.Context, u *models.User) error {
				updated = u
				return nil
			},
		}
		h := handler.NewUpdateUserHandler(st)

		body, _ := json.Marshal(map[string]string{"role": models.RoleAdmin})
		req := withUserID(httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/"+user.ID.String(), bytes.NewReader(body)), user.ID)
		w := httptest.NewRecorder()
		h(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, updated)
		assert.Equal(t, models.RoleAdmin, updated.Role)
	})

	t.Run("unknown user", func(t *testing.T) {
		h := handler.NewUpdateUserHandler(&storemock.Store{})

		body, _ := json.Marshal(map[string]string{"role": models.RoleUser})
		id := uuid.New()
		req := withUserID(httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/"+id.String(), bytes.NewReader(body)), id)
		w := httptest.NewRecorder()
		h(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteUserHandler(t *testing.T) {
	admin := uuid.New()

	t.Run("deletes another user", func(t *testing.T) {
		target := uuid.New()
		deleted := uuid.Nil
		st := &storemock.Store{
			DeleteUserFunc: func(_ context.Context, id uuid.UUID) error {
				deleted = id
				return nil
			},
		}
		h := handler.NewDeleteUserHandler(st)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+target.String(), nil)
		req = req.WithContext(mw.SetUser(req.Context(), admin, "root", models.RoleAdmin))
		w := httptest.NewRecorder()
		h(w, withUserID(req, target))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, target, deleted)
	})

	t.Run("refuses while a job is running", func(t *testing.T) {
		target := uuid.New()
		st := &storemock.Store{
			CountRunningJobsByUserFunc: func(_ context.Context, _ uuid.UUID) (int, error) { return 1, nil },
			DeleteUserFunc: func(_ context.Context, _ uuid.UUID) error {
				t.Fatal("unexpected delete")
				return nil
			},
		}
		h := handler.NewDeleteUserHandler(st)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+target.String(), nil)
		req = req.WithContext(mw.SetUser(req.Context(), admin, "root", models.RoleAdmin))
		w := httptest.NewRecorder()
		h(w, withUserID(req, target))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("refuses self-deletion", func(t *testing.T) {
		h := handler.NewDeleteUserHandler(&storemock.Store{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+admin.String(), nil)
		req = req.WithContext(mw.SetUser(req.Context(), admin, "root", models.RoleAdmin))
		w := httptest.NewRecorder()
		h(w, withUserID(req, admin))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		st := &storemock.Store{
			DeleteUserFunc: func(_ context.Context, _ uuid.UUID) error { return store.ErrNotFound },
		}
		h := handler.NewDeleteUserHandler(st)

		target := uuid.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+target.String(), nil)
		req = req.WithContext(mw.SetUser(req.Context(), admin, "root", models.RoleAdmin))
		w := httptest.NewRecorder()
		h(w, withUserID(req, target))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	user := userWithPassword(t, "alice", "old password")

	newRequest := func(current, next string) *http.Request {
		body, _ := json.Marshal(map[string]string{
			"current_password": current,
			"new_password":     next,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/password", bytes.NewReader(body))
		return req.WithContext(mw.SetUser(req.Context(), user.ID, user.Username, user.Role))
	}

	t.Run("changes with correct current password", func(t *testing.T) {
		var updated *models.User
		st := &storemock.Store{
			GetUserFunc: func(_ context.Context, _ uuid.UUID) (*models.User, error) { return user, nil },
			UpdateUserFunc: func(_ context.Context, u *models.User) error {
				updated = u
				return nil
			},
		}
		h := handler.NewChangePasswordHandler(st)

		w := httptest.NewRecorder()
		h(w, newRequest("old password", "new password 1"))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, updated)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new password 1")))
	})

	t.Run("rejects wrong current password", func(t *testing.T) {
		st := &storemock.Store{
			GetUserFunc: func(_ context.Context, _ uuid.UUID) (*models.User, error) { return user, nil },
		}
		h := handler.NewChangePasswordHandler(st)

		w := httptest.NewRecorder()
		h(w, newRequest("guessed wrong", "new password 1"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects short new password", func(t *testing.T) {
		h := handler.NewChangePasswordHandler(&storemock.Store{})

		w := httptest.NewRecorder()
		h(w, newRequest("old password", "tiny"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
