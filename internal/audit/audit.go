// Package audit records administrative actions in admin_audit_logs.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
)

type Action string

const (
	ActionMFAEnabled       Action = "MFA_ENABLED"
	ActionMFAVerified      Action = "MFA_VERIFIED"
	ActionStaffCreated     Action = "STAFF_CREATED"
	ActionStaffUpdated     Action = "STAFF_UPDATED"
	ActionStaffDeactivated Action = "STAFF_DEACTIVATED"
	ActionOrderStatus      Action = "ORDER_STATUS_CHANGED"
	ActionOrderRefunded    Action = "ORDER_REFUNDED"
	ActionAuditExported    Action = "AUDIT_EXPORTED"
)

var ErrActionRequired = errors.New("audit: action is required")

type Entry struct {
	ActorID      *uuid.UUID
	Action       Action
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IP           string
}

type Store interface {
	CreateAuditLog(ctx context.Context, arg db.CreateAuditLogParams) (db.AdminAuditLog, error)
	ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AdminAuditLog, error)
	CountAuditLogs(ctx context.Context) (int64, error)
	ListAuditLogsBetween(ctx context.Context, arg db.ListAuditLogsBetweenParams) ([]db.AdminAuditLog, error)
}

type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists the entry and mirrors it to the request log.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(string(e.Action)) == "" {
		return ErrActionRequired
	}

	details := []byte("{}")
	if len(e.Details) > 0 {
		encoded, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = encoded
	}

	row, err := r.store.CreateAuditLog(ctx, db.CreateAuditLogParams{
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      details,
		IpAddress:    e.IP,
	})
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	logging.FromContext(ctx).Info("audit",
		"audit_id", row.ID,
		"action", e.Action,
		"resource_type", e.ResourceType,
		"resource_id", e.ResourceID,
	)
	return nil
}

// Page is one page of audit entries, newest first.
type Page struct {
	Entries  []db.AdminAuditLog `json:"entries"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

func (r *Recorder) List(ctx context.Context, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = config.DefaultAuditLogPageSize
	}

	entries, err := r.store.ListAuditLogs(ctx, db.ListAuditLogsParams{
		Limit:  int64(pageSize),
		Offset: int64((page - 1) * pageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	total, err := r.store.CountAuditLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}
	if entries == nil {
		entries = []db.AdminAuditLog{}
	}

	return &Page{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}
