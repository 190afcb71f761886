package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/rbac"
)

// IdentityBuilder builds provider identities for tests.
type IdentityBuilder struct {
	user identity.User
}

func NewIdentity() *IdentityBuilder {
	id := uuid.New()
	return &IdentityBuilder{user: identity.User{
		ID:           id,
		Email:        "user-" + id.String()[:8] + "@bazaar.test",
		AppMetadata:  map[string]any{},
		UserMetadata: map[string]any{},
	}}
}

func (b *IdentityBuilder) WithID(id uuid.UUID) *IdentityBuilder {
	b.user.ID = id
	return b
}

func (b *IdentityBuilder) WithEmail(email string) *IdentityBuilder {
	b.user.Email = email
	return b
}

// WithRole sets the role claim in app_metadata.
func (b *IdentityBuilder) WithRole(role rbac.Role) *IdentityBuilder {
	b.user.AppMetadata["role"] = string(role)
	return b
}

// WithUserMetadataRole sets the user-editable role claim.
func (b *IdentityBuilder) WithUserMetadataRole(role string) *IdentityBuilder {
	b.user.UserMetadata["role"] = role
	return b
}

func (b *IdentityBuilder) SignedInAgo(d time.Duration) *IdentityBuilder {
	ts := time.Now().Add(-d)
	b.user.LastSignInAt = &ts
	return b
}

func (b *IdentityBuilder) Build() *identity.User {
	u := b.user
	return &u
}
