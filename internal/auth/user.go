package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

type contextKey string

const userKey contextKey = "authenticated_user"

// AuthenticatedUser is resolved fresh on every request and never persisted.
type AuthenticatedUser struct {
	ID           uuid.UUID
	Email        string
	Role         rbac.Role
	Permissions  rbac.PermissionSet
	IsAdmin      bool
	IsSuperAdmin bool

	LastSignInAt *time.Time
	// AccessToken is kept for calls the provider must make on the user's behalf.
	AccessToken string
}

func (u *AuthenticatedUser) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           uuid.UUID `json:"id"`
		Email        string    `json:"email"`
		Role         rbac.Role `json:"role"`
		Permissions  []string  `json:"permissions"`
		IsAdmin      bool      `json:"isAdmin"`
		IsSuperAdmin bool      `json:"isSuperAdmin"`
	}{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		Permissions:  u.Permissions.Strings(),
		IsAdmin:      u.IsAdmin,
		IsSuperAdmin: u.IsSuperAdmin,
	})
}

func WithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(userKey).(*AuthenticatedUser)
	return user, ok && user != nil
}
