// Package identity talks to the managed auth provider. It owns nothing: sessions,
// password hashes and MFA factors live with the provider, and this package only
// asks questions about them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredential means the provider rejected the token or refresh token.
	ErrInvalidCredential = errors.New("identity: invalid credential")
	// ErrUnavailable means the provider could not be reached or failed.
	ErrUnavailable = errors.New("identity: provider unavailable")
	ErrUserExists  = errors.New("identity: user already exists")
	ErrInvalidCode = errors.New("identity: invalid verification code")
)

// APIError is a non-2xx provider response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: provider returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: provider returned %d: %s", e.Status, e.Message)
}

// User is the verified identity as the provider reports it.
type User struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	LastSignInAt *time.Time     `json:"last_sign_in_at"`
	Factors      []Factor       `json:"factors"`
}

// Factor is an MFA factor registered with the provider.
type Factor struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendly_name"`
	FactorType   string `json:"factor_type"`
	Status       string `json:"status"`
}

// Session is a provider-issued token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// AdminUserParams creates an account through the service-role API.
type AdminUserParams struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// TOTPEnrollment is the provider's answer to a TOTP factor enrollment.
type TOTPEnrollment struct {
	FactorID string `json:"factor_id"`
	QRCode   string `json:"qr_code"`
	Secret   string `json:"secret"`
	URI      string `json:"uri"`
}

// Provider is the subset of the auth provider this codebase uses.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	CreateUser(ctx context.Context, params AdminUserParams) (*User, error)
	EnrollTOTP(ctx context.Context, accessToken, friendlyName string) (*TOTPEnrollment, error)
	ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error)
	VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) error
}

// MetadataString reads a string value from a metadata bag.
func MetadataString(meta map[string]any, key string) (string, bool) {
	if meta == nil {
		return "", false
	}
	s, ok := meta[key].(string)
	return s, ok && s != ""
}
