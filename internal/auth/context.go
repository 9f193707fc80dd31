package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxDirectorID
	ctxRole
)

// Identity is the authenticated caller.
type Identity struct {
	UserID     int64
	DirectorID int64
	Role       string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, id.UserID)
	ctx = context.WithValue(ctx, ctxDirectorID, id.DirectorID)
	ctx = context.WithValue(ctx, ctxRole, id.Role)
	return ctx
}

// WithDirectorID replaces the tenant scope, e.g. after an admin override.
func WithDirectorID(ctx context.Context, directorID int64) context.Context {
	return context.WithValue(ctx, ctxDirectorID, directorID)
}

func UserID(ctx context.Context) (int64, error) {
	if v, ok := ctx.Value(ctxUserID).(int64); ok && v > 0 {
		return v, nil
	}
	return 0, errors.New("user_id not in context")
}

func DirectorID(ctx context.Context) (int64, error) {
	if v, ok := ctx.Value(ctxDirectorID).(int64); ok && v > 0 {
		return v, nil
	}
	return 0, errors.New("director_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxRole).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
