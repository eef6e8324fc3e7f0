package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userRoleKey contextKey = "user_role"
	usernameKey contextKey = "username"
)

func SetUser(ctx context.Context, id uuid.UUID, username, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	ctx = context.WithValue(ctx, usernameKey, username)
	return context.WithValue(ctx, userRoleKey, role)
}

func GetUserID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok
}

func GetUsername(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(usernameKey).(string)
	return name, ok
}

func GetUserRole(r *http.Request) (string, bool) {
	role, ok := r.Context().Value(userRoleKey).(string)
	return role, ok
}
