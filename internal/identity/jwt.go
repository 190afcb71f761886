package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const audience = "authenticated"

// LocalVerifier resolves access tokens by checking the project's HS256
// signature instead of calling the provider. Everything else is delegated.
type LocalVerifier struct {
	Provider
	key jwk.Key
}

func NewLocalVerifier(secret []byte, delegate Provider) (*LocalVerifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required for local verification")
	}

	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.HS256); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	return &LocalVerifier{Provider: delegate, key: key}, nil
}

type amrEntry struct {
	Method    string `json:"method"`
	Timestamp int64  `json:"timestamp"`
}

func (v *LocalVerifier) GetUser(ctx context.Context, accessToken string) (*User, error) {
	token, err := jwt.Parse([]byte(accessToken),
		jwt.WithKey(jwa.HS256, v.key),
		jwt.WithValidate(true),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	id, err := uuid.Parse(token.Subject())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject: %v", ErrInvalidCredential, err)
	}

	user := &User{
		ID:           id,
		AppMetadata:  claimMap(token, "app_metadata"),
		UserMetadata: claimMap(token, "user_metadata"),
	}
	if email, ok := token.Get("email"); ok {
		user.Email, _ = email.(string)
	}
	if ts := lastSignIn(token); !ts.IsZero() {
		user.LastSignInAt = &ts
	}
	return user, nil
}

func claimMap(token jwt.Token, name string) map[string]any {
	raw, ok := token.Get(name)
	if !ok {
		return map[string]any{}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// secondFactors are amr methods that step up an existing session rather
// than sign the user in.
var secondFactors = map[string]bool{"totp": true, "mfa/totp": true, "mfa/webauthn": true, "webauthn": true}

// lastSignIn is when the session was established: the newest first-factor
// entry in the amr claim, falling back to iat. Second-factor entries are
// skipped so an MFA step-up does not reset the sign-in time.
func lastSignIn(token jwt.Token) time.Time {
	var newest int64
	for _, e := range amrEntries(token) {
		if secondFactors[e.Method] {
			continue
		}
		if e.Timestamp > newest {
			newest = e.Timestamp
		}
	}
	if newest > 0 {
		return time.Unix(newest, 0).UTC()
	}
	return token.IssuedAt().UTC()
}

func amrEntries(token jwt.Token) []amrEntry {
	raw, ok := token.Get("amr")
	if !ok {
		return nil
	}

	// claims arrive as generic JSON values; round-trip into the typed shape
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var entries []amrEntry
	if err := json.Unmarshal(encoded, &entries); err != nil {
		return nil
	}
	return entries
}
