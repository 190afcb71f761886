// Package mfa implements the admin second-factor flow: TOTP through the
// identity provider and a WebAuthn challenge/assertion pass-through.
package mfa

import (
	"errors"
	"fmt"
)

// State is where a user stands in the second-factor lifecycle.
type State string

const (
	StateNotEnrolled     State = "not_enrolled"
	StateEnrolling       State = "enrolling"
	StateEnrolled        State = "enrolled"
	StateChallengeIssued State = "challenge_issued"
	StateVerified        State = "verified"
	StateExpired         State = "expired"
	StateFailed          State = "failed"
)

var ErrInvalidTransition = errors.New("mfa: invalid state transition")

var transitions = map[State][]State{
	StateNotEnrolled:     {StateEnrolling},
	StateEnrolling:       {StateEnrolling, StateEnrolled, StateFailed},
	StateEnrolled:        {StateEnrolling, StateChallengeIssued, StateVerified},
	StateChallengeIssued: {StateChallengeIssued, StateVerified, StateExpired, StateFailed},
	StateVerified:        {StateEnrolling, StateChallengeIssued, StateVerified},
	StateExpired:         {StateChallengeIssued},
	StateFailed:          {StateEnrolling, StateChallengeIssued},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
