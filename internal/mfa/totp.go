package mfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
)

const totpFriendlyName = "The Bazaar Admin"

// EnrollTOTP asks the provider for a new TOTP factor and remembers it as the
// caller's pending enrollment until the first code is verified.
func (s *Service) EnrollTOTP(ctx context.Context, user *auth.AuthenticatedUser) (*identity.TOTPEnrollment, error) {
	state, _, _, err := s.currentState(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := transition(state, StateEnrolling); err != nil {
		return nil, err
	}

	enrollment, err := s.provider.EnrollTOTP(ctx, user.AccessToken, totpFriendlyName)
	if err != nil {
		metrics.MFAEvent(MethodTOTP, "error")
		return nil, fmt.Errorf("enrolling totp factor: %w", err)
	}

	if err := s.challenges.SetPendingFactor(ctx, user.ID, enrollment.FactorID, enrollmentTTL); err != nil {
		return nil, fmt.Errorf("storing pending enrollment: %w", err)
	}

	metrics.MFAEvent(MethodTOTP, "enrolling")
	logging.FromContext(ctx).Info("totp enrollment started", "factor_id", enrollment.FactorID)
	return enrollment, nil
}

// VerifyTOTP checks a 6-digit code against the factor through a provider
// challenge/verify round trip. The first success after EnrollTOTP enables MFA.
func (s *Service) VerifyTOTP(ctx context.Context, user *auth.AuthenticatedUser, factorID, code, ip string) error {
	if !totpCode.MatchString(code) {
		return ErrInvalidCode
	}

	state, profile, _, err := s.currentState(ctx, user)
	if err != nil {
		return err
	}

	pending, err := s.challenges.PendingFactor(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("reading pending enrollment: %w", err)
	}
	enrolling := pending != ""
	if enrolling && factorID != pending {
		return ErrFactorMismatch
	}

	if state == StateEnrolling {
		if err := transition(state, StateEnrolled); err != nil {
			return err
		}
		state = StateEnrolled
	}
	if state == StateNotEnrolled {
		return ErrNotEnrolled
	}
	// the provider issues its own challenge for the round trip
	if err := transition(state, StateChallengeIssued); err != nil {
		return err
	}

	challengeID, err := s.provider.ChallengeFactor(ctx, user.AccessToken, factorID)
	if err != nil {
		metrics.MFAEvent(MethodTOTP, "error")
		return fmt.Errorf("issuing totp challenge: %w", err)
	}

	if err := s.provider.VerifyFactor(ctx, user.AccessToken, factorID, challengeID, code); err != nil {
		if errors.Is(err, identity.ErrInvalidCode) {
			metrics.MFAEvent(MethodTOTP, "failed")
			logging.FromContext(ctx).Warn("totp code rejected", "factor_id", factorID)
			return ErrInvalidCode
		}
		metrics.MFAEvent(MethodTOTP, "error")
		return fmt.Errorf("verifying totp code: %w", err)
	}

	if enrolling {
		if err := s.challenges.ClearPendingFactor(ctx, user.ID); err != nil {
			logging.FromContext(ctx).Error("failed to clear pending enrollment", "error", err)
		}
	}

	return s.markVerified(ctx, user, profile, MethodTOTP, ip, enrolling)
}
