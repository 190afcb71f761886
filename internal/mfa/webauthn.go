package mfa

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
)

const challengeBytes = 32

type Registration struct {
	CredentialID string   `json:"credentialId"`
	PublicKey    string   `json:"publicKey"`
	Transports   []string `json:"transports"`
}

type CredentialDescriptor struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Transports []string `json:"transports"`
}

// ChallengeOptions is handed to navigator.credentials.get on the client.
type ChallengeOptions struct {
	Challenge        string                 `json:"challenge"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	Timeout          int64                  `json:"timeout"`
	ExpiresAt        time.Time              `json:"expiresAt"`
}

// Assertion is the client's answer to a challenge. All fields are base64url.
type Assertion struct {
	CredentialID      string `json:"credentialId"`
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON"`
	Signature         string `json:"signature"`
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// RegisterCredential stores a platform authenticator's public key. The first
// credential on an account without MFA enables it with method webauthn.
func (s *Service) RegisterCredential(ctx context.Context, user *auth.AuthenticatedUser, reg Registration, ip string) (*db.WebauthnCredential, error) {
	if strings.TrimSpace(reg.CredentialID) == "" || strings.TrimSpace(reg.PublicKey) == "" {
		return nil, ErrMalformedAssertion
	}

	state, profile, _, err := s.currentState(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := transition(state, StateEnrolling); err != nil {
		return nil, err
	}

	transports := reg.Transports
	if transports == nil {
		transports = []string{}
	}
	cred, err := s.queries.CreateWebauthnCredential(ctx, db.CreateWebauthnCredentialParams{
		CredentialID: reg.CredentialID,
		UserID:       user.ID,
		PublicKey:    reg.PublicKey,
		Transports:   transports,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCredentialExists
		}
		return nil, fmt.Errorf("storing webauthn credential: %w", err)
	}

	if !profile.MfaEnabled {
		if err := s.enable(ctx, user, profile, MethodWebAuthn, ip, s.now().UTC()); err != nil {
			return nil, err
		}
	}

	logging.FromContext(ctx).Info("webauthn credential registered", "credential_id", cred.CredentialID)
	return &cred, nil
}

// IssueChallenge replaces the caller's live challenge with a fresh one.
func (s *Service) IssueChallenge(ctx context.Context, user *auth.AuthenticatedUser) (*ChallengeOptions, error) {
	state, _, creds, err := s.currentState(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrNotEnrolled
	}
	if err := transition(state, StateChallengeIssued); err != nil {
		return nil, err
	}

	raw := make([]byte, challengeBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}

	challenge := Challenge{
		Value:     base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: s.now().Add(config.ChallengeTTL).UTC(),
	}
	if err := s.challenges.Put(ctx, user.ID, challenge, config.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}

	allow := make([]CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		allow = append(allow, CredentialDescriptor{ID: c.CredentialID, Type: "public-key", Transports: c.Transports})
	}

	metrics.MFAEvent(MethodWebAuthn, "challenge_issued")
	return &ChallengeOptions{
		Challenge:        challenge.Value,
		AllowCredentials: allow,
		Timeout:          config.ChallengeTTL.Milliseconds(),
		ExpiresAt:        challenge.ExpiresAt,
	}, nil
}

// VerifyAssertion accepts an assertion for the caller's live challenge.
//
// Checked: challenge existence and expiry, attempt budget, credential
// ownership, and that clientDataJSON answers this exact challenge.
func (s *Service) VerifyAssertion(ctx context.Context, user *auth.AuthenticatedUser, a Assertion, ip string) error {
	log := logging.FromContext(ctx)

	if a.CredentialID == "" || a.ClientDataJSON == "" || a.AuthenticatorData == "" || a.Signature == "" {
		return ErrMalformedAssertion
	}

	challenge, err := s.challenges.Get(ctx, user.ID)
	if err != nil {
		return err
	}
	if challenge.Expired(s.now()) {
		if err := s.challenges.Delete(ctx, user.ID); err != nil {
			log.Error("failed to delete expired challenge", "error", err)
		}
		metrics.MFAEvent(MethodWebAuthn, "expired")
		return ErrChallengeExpired
	}

	attempts, err := s.challenges.IncrAttempts(ctx, user.ID, config.ChallengeTTL)
	if err != nil {
		return fmt.Errorf("counting attempt: %w", err)
	}
	if attempts > config.MaxChallengeAttempts {
		if err := s.challenges.Delete(ctx, user.ID); err != nil {
			log.Error("failed to delete exhausted challenge", "error", err)
		}
		return ErrTooManyAttempts
	}

	fail := func(reason error) error {
		metrics.MFAEvent(MethodWebAuthn, "failed")
		log.Warn("webauthn assertion rejected", "reason", reason, "attempt", attempts)
		if attempts >= config.MaxChallengeAttempts {
			if err := s.challenges.Delete(ctx, user.ID); err != nil {
				log.Error("failed to delete exhausted challenge", "error", err)
			}
		}
		return reason
	}

	cred, err := s.queries.GetWebauthnCredential(ctx, a.CredentialID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fail(ErrCredentialNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	if cred.UserID != user.ID {
		return fail(ErrCredentialNotFound)
	}

	data, err := decodeClientData(a.ClientDataJSON)
	if err != nil || data.Type != "webauthn.get" {
		return fail(ErrMalformedAssertion)
	}
	if data.Challenge != challenge.Value {
		return fail(ErrChallengeMismatch)
	}

	// TODO: verify a.Signature over authenticatorData||sha256(clientDataJSON)
	// with the stored COSE public key and enforce the sign counter.

	if err := s.challenges.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("consuming challenge: %w", err)
	}
	if err := s.queries.TouchWebauthnCredential(ctx, cred.CredentialID); err != nil {
		log.Error("failed to touch credential", "error", err)
	}

	profile, err := s.profile(ctx, user.ID)
	if err != nil {
		return err
	}
	return s.markVerified(ctx, user, profile, MethodWebAuthn, ip, false)
}

func decodeClientData(encoded string) (*clientData, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}

	var data clientData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
