package mfa

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/notifications"
)

const (
	MethodTOTP     = "totp"
	MethodWebAuthn = "webauthn"
)

// pending TOTP enrollments are abandoned after this long
const enrollmentTTL = 10 * time.Minute

var (
	ErrInvalidCode        = errors.New("mfa: invalid verification code")
	ErrFactorMismatch     = errors.New("mfa: factor does not match the pending enrollment")
	ErrProfileNotFound    = errors.New("mfa: profile not found")
	ErrNotEnrolled        = errors.New("mfa: no second factor enrolled")
	ErrChallengeExpired   = errors.New("mfa: challenge expired")
	ErrChallengeMismatch  = errors.New("mfa: assertion does not answer the active challenge")
	ErrCredentialNotFound = errors.New("mfa: credential not found")
	ErrCredentialExists   = errors.New("mfa: credential already registered")
	ErrTooManyAttempts    = errors.New("mfa: too many failed attempts")
	ErrMalformedAssertion = errors.New("mfa: malformed assertion")
)

var totpCode = regexp.MustCompile(`^\d{6}$`)

// Queries is the persistence the flow needs.
type Queries interface {
	audit.Store
	GetProfile(ctx context.Context, id uuid.UUID) (db.Profile, error)
	EnableProfileMFA(ctx context.Context, arg db.EnableProfileMFAParams) error
	SetProfileMFAVerifiedAt(ctx context.Context, arg db.SetProfileMFAVerifiedAtParams) error
	CreateWebauthnCredential(ctx context.Context, arg db.CreateWebauthnCredentialParams) (db.WebauthnCredential, error)
	GetWebauthnCredential(ctx context.Context, credentialID string) (db.WebauthnCredential, error)
	ListWebauthnCredentialsByUser(ctx context.Context, userID uuid.UUID) ([]db.WebauthnCredential, error)
	TouchWebauthnCredential(ctx context.Context, credentialID string) error
}

// Notifier sends the courtesy e-mail when a factor is enabled. May be nil.
type Notifier interface {
	SendBestEffort(ctx context.Context, to, name string, data any)
}

type Service struct {
	provider   identity.Provider
	challenges *ChallengeStore
	queries    Queries
	audit      *audit.Recorder
	notifier   Notifier
	now        func() time.Time
}

func NewService(provider identity.Provider, challenges *ChallengeStore, queries Queries, notifier Notifier) *Service {
	return &Service{
		provider:   provider,
		challenges: challenges,
		queries:    queries,
		audit:      audit.NewRecorder(queries),
		notifier:   notifier,
		now:        time.Now,
	}
}

// Status is the caller's second-factor standing.
type Status struct {
	State           State      `json:"state"`
	Enabled         bool       `json:"enabled"`
	Method          string     `json:"method,omitempty"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	SessionVerified bool       `json:"sessionVerified"`
	Credentials     int        `json:"webauthnCredentials"`
}

func (s *Service) Status(ctx context.Context, user *auth.AuthenticatedUser) (*Status, error) {
	state, profile, creds, err := s.currentState(ctx, user)
	if err != nil {
		return nil, err
	}

	st := &Status{
		State:           state,
		Enabled:         profile.MfaEnabled,
		VerifiedAt:      profile.MfaVerifiedAt,
		SessionVerified: VerifiedForSession(profile, user.LastSignInAt),
		Credentials:     len(creds),
	}
	if profile.MfaMethod != nil {
		st.Method = *profile.MfaMethod
	}
	return st, nil
}

// state derives the current state from the live challenge, the profile and
// any pending TOTP enrollment, in that order.
func (s *Service) state(ctx context.Context, user *auth.AuthenticatedUser, profile db.Profile, hasCredentials bool) (State, error) {
	challenge, err := s.challenges.Get(ctx, user.ID)
	switch {
	case err == nil:
		if challenge.Expired(s.now()) {
			return StateExpired, nil
		}
		return StateChallengeIssued, nil
	case !errors.Is(err, ErrChallengeNotFound):
		return "", fmt.Errorf("reading challenge: %w", err)
	}

	if profile.MfaEnabled || hasCredentials {
		if VerifiedForSession(profile, user.LastSignInAt) {
			return StateVerified, nil
		}
		return StateEnrolled, nil
	}

	pending, err := s.challenges.PendingFactor(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("reading pending enrollment: %w", err)
	}
	if pending != "" {
		return StateEnrolling, nil
	}
	return StateNotEnrolled, nil
}

// VerifiedForSession reports whether the profile's last second-factor check
// happened after the session started.
func VerifiedForSession(profile db.Profile, sessionStart *time.Time) bool {
	if profile.MfaVerifiedAt == nil {
		return false
	}
	if sessionStart == nil {
		return true
	}
	return profile.MfaVerifiedAt.After(*sessionStart)
}

func (s *Service) profile(ctx context.Context, id uuid.UUID) (db.Profile, error) {
	profile, err := s.queries.GetProfile(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return db.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	return profile, nil
}

func (s *Service) currentState(ctx context.Context, user *auth.AuthenticatedUser) (State, db.Profile, []db.WebauthnCredential, error) {
	profile, err := s.profile(ctx, user.ID)
	if err != nil {
		return "", db.Profile{}, nil, err
	}
	creds, err := s.queries.ListWebauthnCredentialsByUser(ctx, user.ID)
	if err != nil {
		return "", db.Profile{}, nil, fmt.Errorf("listing webauthn credentials: %w", err)
	}
	state, err := s.state(ctx, user, profile, len(creds) > 0)
	if err != nil {
		return "", db.Profile{}, nil, err
	}
	return state, profile, creds, nil
}

// markVerified flags the session as second-factor verified. Completing an
// enrollment (or a first success) also enables MFA on the profile.
func (s *Service) markVerified(ctx context.Context, user *auth.AuthenticatedUser, profile db.Profile, method, ip string, enrolling bool) error {
	now := s.now().UTC()

	if enrolling || !profile.MfaEnabled {
		if err := s.enable(ctx, user, profile, method, ip, now); err != nil {
			return err
		}
	} else if err := s.audit.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionMFAVerified,
		ResourceType: "profile",
		ResourceID:   user.ID.String(),
		Details:      map[string]any{"method": method},
		IP:           ip,
	}); err != nil {
		return err
	}

	if err := s.queries.SetProfileMFAVerifiedAt(ctx, db.SetProfileMFAVerifiedAtParams{ID: user.ID, VerifiedAt: now}); err != nil {
		return fmt.Errorf("recording verification time: %w", err)
	}

	metrics.MFAEvent(method, "verified")
	logging.FromContext(ctx).Info("second factor verified", "method", method)
	return nil
}

func (s *Service) enable(ctx context.Context, user *auth.AuthenticatedUser, profile db.Profile, method, ip string, at time.Time) error {
	if err := s.queries.EnableProfileMFA(ctx, db.EnableProfileMFAParams{ID: user.ID, MfaMethod: method}); err != nil {
		return fmt.Errorf("enabling mfa: %w", err)
	}
	if err := s.audit.Record(ctx, audit.Entry{
		ActorID:      &user.ID,
		Action:       audit.ActionMFAEnabled,
		ResourceType: "profile",
		ResourceID:   user.ID.String(),
		Details:      map[string]any{"method": method},
		IP:           ip,
	}); err != nil {
		return err
	}

	metrics.MFAEvent(method, "enabled")
	if s.notifier != nil {
		s.notifier.SendBestEffort(ctx, profile.Email, notifications.TemplateMFAEnabled, map[string]any{
			"FullName": profile.FullName,
			"Method":   method,
			"At":       at.Format(time.RFC1123),
		})
	}
	return nil
}
