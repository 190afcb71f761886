package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-bazaar/bazaar-backend/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoTrueClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGoTrueClient(config.IdentityConfig{
		URL:            srv.URL,
		AnonKey:        "anon-key",
		ServiceRoleKey: "service-key",
	}, srv.Client())
}

func TestGoTrueClient_GetUser(t *testing.T) {
	userID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":              userID,
			"email":           "ada@bazaar.test",
			"app_metadata":    map[string]any{"role": "manager"},
			"user_metadata":   map[string]any{"full_name": "Ada"},
			"last_sign_in_at": "2025-03-01T10:00:00Z",
		})
	})

	t.Run("valid token", func(t *testing.T) {
		user, err := client.GetUser(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "ada@bazaar.test", user.Email)

		role, ok := MetadataString(user.AppMetadata, "role")
		assert.True(t, ok)
		assert.Equal(t, "manager", role)
		require.NotNil(t, user.LastSignInAt)
		assert.Equal(t, 2025, user.LastSignInAt.Year())
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := client.GetUser(context.Background(), "bad-token")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestGoTrueClient_ProviderFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetUser(context.Background(), "any")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGoTrueClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewGoTrueClient(config.IdentityConfig{URL: srv.URL}, nil)
	_, err := client.GetUser(context.Background(), "any")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGoTrueClient_RefreshSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refresh_token"] != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-2",
			"refresh_token": "rt-2",
			"expires_in":    3600,
		})
	})

	session, err := client.RefreshSession(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)
	assert.Equal(t, "rt-2", session.RefreshToken)

	_, err = client.RefreshSession(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestGoTrueClient_SignOutIgnoresDeadSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})

	assert.NoError(t, client.SignOut(context.Background(), "expired"))
}

func TestGoTrueClient_CreateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var params AdminUserParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		if params.Email == "taken@bazaar.test" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": uuid.New(), "email": params.Email})
	})

	user, err := client.CreateUser(context.Background(), AdminUserParams{Email: "new@bazaar.test", Password: "long-enough-pw"})
	require.NoError(t, err)
	assert.Equal(t, "new@bazaar.test", user.Email)

	_, err = client.CreateUser(context.Background(), AdminUserParams{Email: "taken@bazaar.test"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestGoTrueClient_TOTPRoundTrip(t *testing.T) {
	factorID := uuid.New()
	challenge := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/factors":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":   factorID,
				"type": "totp",
				"totp": map[string]string{"qr_code": "data:image/svg+xml;...", "secret": "JBSWY3DP", "uri": "otpauth://totp/bazaar"},
			})
		case "/auth/v1/factors/" + factorID.String() + "/challenge":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": challenge, "expires_at": 1767225600})
		case "/auth/v1/factors/" + factorID.String() + "/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, challenge.String(), body["challenge_id"])
			if body["code"] != "123456" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"msg":"Invalid TOTP code entered"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"aal2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	enrollment, err := client.EnrollTOTP(ctx, "at", "Bazaar Admin")
	require.NoError(t, err)
	assert.Equal(t, factorID.String(), enrollment.FactorID)
	assert.Equal(t, "JBSWY3DP", enrollment.Secret)

	challengeID, err := client.ChallengeFactor(ctx, "at", enrollment.FactorID)
	require.NoError(t, err)
	assert.Equal(t, challenge.String(), challengeID)

	assert.ErrorIs(t, client.VerifyFactor(ctx, "at", enrollment.FactorID, challengeID, "000000"), ErrInvalidCode)
	assert.NoError(t, client.VerifyFactor(ctx, "at", enrollment.FactorID, challengeID, "123456"))
	assert.ErrorIs(t, client.VerifyFactor(ctx, "at", "factor-1", challengeID, "123456"), ErrInvalidCode)
}

func TestGoTrueClient_HonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetUser(ctx, "any")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func signToken(t *testing.T, secret []byte, build func(b *jwt.Builder) *jwt.Builder) string {
	t.Helper()
	token, err := build(jwt.NewBuilder()).Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func TestLocalVerifier_GetUser(t *testing.T) {
	secret := []byte("super-secret-jwt-token-with-at-least-32-characters")
	verifier, err := NewLocalVerifier(secret, nil)
	require.NoError(t, err)

	userID := uuid.New()
	signedIn := time.Now().Add(-10 * time.Minute).Truncate(time.Second)

	t.Run("maps claims", func(t *testing.T) {
		token := signToken(t, secret, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject(userID.String()).
				Audience([]string{"authenticated"}).
				Expiration(time.Now().Add(time.Hour)).
				Claim("email", "ada@bazaar.test").
				Claim("app_metadata", map[string]any{"role": "admin"}).
				Claim("amr", []map[string]any{
					{"method": "password", "timestamp": signedIn.Unix()},
				})
		})

		user, err := verifier.GetUser(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "ada@bazaar.test", user.Email)
		assert.Equal(t, "admin", user.AppMetadata["role"])
		require.NotNil(t, user.LastSignInAt)
		assert.True(t, signedIn.Equal(*user.LastSignInAt))
	})

	t.Run("mfa step-up keeps the sign-in time", func(t *testing.T) {
		stepUp := time.Now().Add(-time.Minute).Truncate(time.Second)
		token := signToken(t, secret, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject(userID.String()).
				Audience([]string{"authenticated"}).
				Expiration(time.Now().Add(time.Hour)).
				Claim("amr", []map[string]any{
					{"method": "totp", "timestamp": stepUp.Unix()},
					{"method": "password", "timestamp": signedIn.Unix()},
				})
		})

		user, err := verifier.GetUser(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, user.LastSignInAt)
		assert.True(t, signedIn.Equal(*user.LastSignInAt), "got %s", user.LastSignInAt)
	})

	t.Run("falls back to iat without amr", func(t *testing.T) {
		issued := time.Now().Add(-5 * time.Minute).Truncate(time.Second)
		token := signToken(t, secret, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject(userID.String()).
				Audience([]string{"authenticated"}).
				IssuedAt(issued).
				Expiration(time.Now().Add(time.Hour))
		})

		user, err := verifier.GetUser(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, user.LastSignInAt)
		assert.True(t, issued.Equal(*user.LastSignInAt))
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, secret, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject(userID.String()).
				Audience([]string{"authenticated"}).
				Expiration(time.Now().Add(-time.Minute))
		})

		_, err := verifier.GetUser(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, []byte("a-different-secret-of-sufficient-length!!"), func(b *jwt.Builder) *jwt.Builder {
			return b.Subject(userID.String()).
				Audience([]string{"authenticated"}).
				Expiration(time.Now().Add(time.Hour))
		})

		_, err := verifier.GetUser(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.GetUser(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestNewLocalVerifier_RequiresSecret(t *testing.T) {
	_, err := NewLocalVerifier(nil, nil)
	assert.Error(t, err)
}
