package db

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	Role               string     `json:"role"`
	IsActive           bool       `json:"is_active"`
	MustChangePassword bool       `json:"must_change_password"`
	MfaEnabled         bool       `json:"mfa_enabled"`
	MfaMethod          *string    `json:"mfa_method"`
	MfaVerifiedAt      *time.Time `json:"mfa_verified_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type AdminStaff struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Role      string    `json:"role"`
	// nil means "use role defaults"
	PermissionsOverride []string   `json:"permissions_override"`
	IsActive            bool       `json:"is_active"`
	CreatedBy           *uuid.UUID `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type WebauthnCredential struct {
	CredentialID string     `json:"credential_id"`
	UserID       uuid.UUID  `json:"user_id"`
	PublicKey    string     `json:"public_key"`
	Transports   []string   `json:"transports"`
	SignCount    int64      `json:"sign_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
}

type AdminAuditLog struct {
	ID           uuid.UUID  `json:"id"`
	ActorID      *uuid.UUID `json:"actor_id"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Details      []byte     `json:"details"`
	IpAddress    string     `json:"ip_address"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Order struct {
	ID               uuid.UUID `json:"id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentReference *string   `json:"payment_reference"`
	TotalKobo        int64     `json:"total_kobo"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
