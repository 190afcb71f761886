package api

import (
	"errors"
	"net/http"

	"github.com/the-bazaar/bazaar-backend/internal/middleware"
	"github.com/the-bazaar/bazaar-backend/internal/mfa"
)

func (s *Server) MFAStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.mfa.Status(r.Context(), currentUser(r))
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.mfa.EnrollTOTP(r.Context(), currentUser(r))
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"factorId": enrollment.FactorID,
		"qrCode":   enrollment.QRCode,
		"secret":   enrollment.Secret,
		"uri":      enrollment.URI,
	})
}

type verifyTOTPRequest struct {
	FactorID string `json:"factorId"`
	Code     string `json:"code"`
}

func (s *Server) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyTOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.mfa.VerifyTOTP(r.Context(), currentUser(r), req.FactorID, req.Code, middleware.ClientIP(r)); err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (s *Server) RegisterWebAuthn(w http.ResponseWriter, r *http.Request) {
	var reg mfa.Registration
	if !decodeJSON(w, r, &reg) {
		return
	}
	cred, err := s.mfa.RegisterCredential(r.Context(), currentUser(r), reg, middleware.ClientIP(r))
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"credentialId": cred.CredentialID,
		"transports":   cred.Transports,
		"createdAt":    cred.CreatedAt,
	})
}

func (s *Server) IssueWebAuthnChallenge(w http.ResponseWriter, r *http.Request) {
	options, err := s.mfa.IssueChallenge(r.Context(), currentUser(r))
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) VerifyWebAuthn(w http.ResponseWriter, r *http.Request) {
	var assertion mfa.Assertion
	if !decodeJSON(w, r, &assertion) {
		return
	}
	if err := s.mfa.VerifyAssertion(r.Context(), currentUser(r), assertion, middleware.ClientIP(r)); err != nil {
		writeMFAError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func writeMFAError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mfa.ErrInvalidCode),
		errors.Is(err, mfa.ErrChallengeMismatch),
		errors.Is(err, mfa.ErrCredentialNotFound):
		// a foreign credential id reads the same as a wrong answer
		NewError(http.StatusBadRequest, CodeMFAFailed, "Verification failed").Write(w)
	case errors.Is(err, mfa.ErrMalformedAssertion):
		BadRequest("Assertion is missing required fields").Write(w)
	case errors.Is(err, mfa.ErrFactorMismatch):
		ValidationErr("Factor does not match the pending enrollment", []ErrorDetail{{Field: "factorId", Message: "unknown factor"}}).Write(w)
	case errors.Is(err, mfa.ErrChallengeExpired):
		NewError(http.StatusBadRequest, CodeMFAExpired, "Challenge expired, request a new one").Write(w)
	case errors.Is(err, mfa.ErrTooManyAttempts):
		NewError(http.StatusTooManyRequests, CodeTooManyAttempts, "Too many failed attempts, request a new challenge").Write(w)
	case errors.Is(err, mfa.ErrChallengeNotFound):
		NewError(http.StatusConflict, CodeInvalidState, "No active challenge").Write(w)
	case errors.Is(err, mfa.ErrNotEnrolled):
		NewError(http.StatusConflict, CodeInvalidState, "No second factor is enrolled").Write(w)
	case errors.Is(err, mfa.ErrInvalidTransition):
		NewError(http.StatusConflict, CodeInvalidState, "Operation not allowed in the current MFA state").Write(w)
	case errors.Is(err, mfa.ErrCredentialExists):
		ConflictErr("Credential already registered").Write(w)
	case errors.Is(err, mfa.ErrProfileNotFound):
		NotFound("Profile").Write(w)
	default:
		internalError(w, r, "mfa operation failed", err)
	}
}
