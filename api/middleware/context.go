package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/adjeibohyen/tutorhub-backend/internal/access"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxEmail   contextKey = "email"
	ctxIsAdmin contextKey = "is_admin"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

func IsAdminFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v, ok := ctx.Value(ctxIsAdmin).(bool); ok {
		return v
	}
	return false
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithEmail injects the user email into the context.
func WithEmail(ctx context.Context, email string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxEmail, email)
}

// WithIsAdmin injects the admin flag into the context.
func WithIsAdmin(ctx context.Context, isAdmin bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIsAdmin, isAdmin)
}

// ViewerFromContext builds the access viewer for the current request.
// An absent or unparsable user id yields an anonymous viewer.
func ViewerFromContext(ctx context.Context) access.Viewer {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return access.Viewer{}
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return access.Viewer{}
	}
	return access.Viewer{
		UserID:        id,
		IsAdmin:       IsAdminFromContext(ctx),
		Authenticated: true,
	}
}
