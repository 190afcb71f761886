package auth

import (
	"encoding/json"
	"net/http"
)

// Machine-readable codes returned in the "code" field of auth failures.
const (
	CodeMissingToken       = "AUTH_MISSING_TOKEN"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeServiceError       = "AUTH_SERVICE_ERROR"
	CodeInsufficientRole   = "AUTH_INSUFFICIENT_ROLE"
	CodeMissingPermission  = "AUTH_MISSING_PERMISSION"
	CodeAdminRequired      = "AUTH_ADMIN_REQUIRED"
	CodeSuperAdminRequired = "AUTH_SUPER_ADMIN_REQUIRED"
	CodeModuleAccessDenied = "AUTH_MODULE_ACCESS_DENIED"
	CodeNotOwner           = "AUTH_NOT_OWNER"
	CodeVendorRequired     = "AUTH_VENDOR_REQUIRED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeAccountSuspended   = "AUTH_ACCOUNT_SUSPENDED"
	CodeResourceNotFound   = "RESOURCE_NOT_FOUND"
)

// Error is a terminal authentication or authorization failure.
type Error struct {
	Status  int
	Code    string
	Message string
	// Required describes the policy that failed; logged, never sent.
	Required string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// WriteError renders the uniform {error, message, code} body.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   http.StatusText(err.Status),
		Message: err.Message,
		Code:    err.Code,
	})
}

func unauthorized(code, message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: message}
}

func forbidden(code, message, required string) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Message: message, Required: required}
}

// Taxonomy constructors.

func ErrMissingCredential() *Error {
	return unauthorized(CodeMissingToken, "Missing or malformed authorization header")
}

func ErrInvalidCredential() *Error {
	return unauthorized(CodeInvalidToken, "Invalid or expired token")
}

func ErrAuthRequired() *Error {
	return unauthorized(CodeAuthRequired, "Authentication required")
}

func ErrServiceUnavailable() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeServiceError, Message: "Authentication service error"}
}

func ErrInsufficientRole(required string) *Error {
	return forbidden(CodeInsufficientRole, "Insufficient role for this resource", required)
}

func ErrInsufficientPermission(required string) *Error {
	return forbidden(CodeMissingPermission, "Missing required permission", required)
}

func ErrModuleDenied(required string) *Error {
	return forbidden(CodeModuleAccessDenied, "No access to this module", required)
}

func ErrNotOwner() *Error {
	return forbidden(CodeNotOwner, "You do not own this resource", "owner or admin")
}

// ErrForbiddenEscalation is returned when a caller tries to grant super_admin.
func ErrForbiddenEscalation() *Error {
	return forbidden(CodeForbidden, "The super_admin role cannot be granted", "role != super_admin")
}

func ErrAccountSuspended() *Error {
	return forbidden(CodeAccountSuspended, "Account is suspended", "active staff account")
}

func errResourceNotFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeResourceNotFound, Message: "Resource not found"}
}
