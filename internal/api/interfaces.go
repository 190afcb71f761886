package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/the-bazaar/bazaar-backend/internal/audit"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/identity"
	"github.com/the-bazaar/bazaar-backend/internal/mfa"
	"github.com/the-bazaar/bazaar-backend/internal/staff"
)

// Check is one readiness probe.
type Check func(ctx context.Context) error

// StaffService defines the admin account operations
type StaffService interface {
	Create(ctx context.Context, actor uuid.UUID, in staff.CreateInput, ip string) (*staff.Member, error)
	List(ctx context.Context, limit, offset int64) (*staff.Page, error)
	Update(ctx context.Context, actor, id uuid.UUID, in staff.UpdateInput, ip string) (*staff.Member, error)
	Deactivate(ctx context.Context, actor, id uuid.UUID, ip string) error
}

// MFAService defines the second-factor operations
type MFAService interface {
	Status(ctx context.Context, user *auth.AuthenticatedUser) (*mfa.Status, error)
	EnrollTOTP(ctx context.Context, user *auth.AuthenticatedUser) (*identity.TOTPEnrollment, error)
	VerifyTOTP(ctx context.Context, user *auth.AuthenticatedUser, factorID, code, ip string) error
	RegisterCredential(ctx context.Context, user *auth.AuthenticatedUser, reg mfa.Registration, ip string) (*db.WebauthnCredential, error)
	IssueChallenge(ctx context.Context, user *auth.AuthenticatedUser) (*mfa.ChallengeOptions, error)
	VerifyAssertion(ctx context.Context, user *auth.AuthenticatedUser, a mfa.Assertion, ip string) error
}

// OrderService defines the order workflow operations
type OrderService interface {
	Get(ctx context.Context, id uuid.UUID) (db.Order, error)
	Owners(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int64) ([]db.Order, error)
	UpdateStatus(ctx context.Context, actor, id uuid.UUID, next, ip string) (db.Order, error)
	Refund(ctx context.Context, actor, id uuid.UUID, ip string) (db.Order, error)
}

type AuditLog interface {
	List(ctx context.Context, page, pageSize int) (*audit.Page, error)
}

type AuditExporter interface {
	Export(ctx context.Context, actor uuid.UUID, ip string, from, to time.Time) (*audit.ExportResult, error)
}

// TaskQueue defines the interface for background task submission
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
