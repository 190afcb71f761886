package api

import (
	"encoding/json"
	"net/http"

	"github.com/the-bazaar/bazaar-backend/internal/logging"
)

const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeResourceNotFound = "RESOURCE_NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeMFAFailed        = "MFA_VERIFICATION_FAILED"
	CodeMFAExpired       = "MFA_CHALLENGE_EXPIRED"
	CodeTooManyAttempts  = "MFA_TOO_MANY_ATTEMPTS"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInternalError    = "INTERNAL_ERROR"
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// additional error context
type ErrorContext map[string]any

// builder pattern
type ErrorBuilder struct {
	Status  int
	Code    string
	Message string
	Details []ErrorDetail
	Context ErrorContext
}

type errorBody struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Details []ErrorDetail `json:"details,omitempty"`
	Context ErrorContext  `json:"context,omitempty"`
}

func NewError(status int, code, message string) *ErrorBuilder {
	return &ErrorBuilder{Status: status, Code: code, Message: message}
}

func (e *ErrorBuilder) WithDetails(details []ErrorDetail) *ErrorBuilder {
	e.Details = details
	return e
}

func (e *ErrorBuilder) WithContext(context ErrorContext) *ErrorBuilder {
	e.Context = context
	return e
}

// Write renders the builder in the same {error, message, code} shape the
// auth guards use, plus optional details and context.
func (e *ErrorBuilder) Write(w http.ResponseWriter) {
	writeJSON(w, e.Status, errorBody{
		Error:   http.StatusText(e.Status),
		Message: e.Message,
		Code:    e.Code,
		Details: e.Details,
		Context: e.Context,
	})
}

// builder pattern extensions

func BadRequest(msg string) *ErrorBuilder {
	return NewError(http.StatusBadRequest, CodeBadRequest, msg)
}

func NotFound(resource string) *ErrorBuilder {
	return NewError(http.StatusNotFound, CodeResourceNotFound, resource+" not found")
}

func ValidationErr(msg string, details []ErrorDetail) *ErrorBuilder {
	return NewError(http.StatusBadRequest, CodeValidationError, msg).WithDetails(details)
}

func ConflictErr(msg string) *ErrorBuilder {
	return NewError(http.StatusConflict, CodeConflict, msg)
}

func InternalError(msg string) *ErrorBuilder {
	return NewError(http.StatusInternalServerError, CodeInternalError, msg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

// internalError logs err against the request and writes a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.FromContext(r.Context()).Error(msg, "error", err)
	InternalError("An unexpected error occurred").Write(w)
}

// decodeJSON reads a JSON body into dst, writing a 400 when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		BadRequest("Request body must be valid JSON").Write(w)
		return false
	}
	return true
}
