package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const auditColumns = `id, actor_id, action, resource_type, resource_id, details, ip_address, created_at`

func scanAuditLog(row interface{ Scan(...any) error }) (AdminAuditLog, error) {
	var i AdminAuditLog
	err := row.Scan(
		&i.ID,
		&i.ActorID,
		&i.Action,
		&i.ResourceType,
		&i.ResourceID,
		&i.Details,
		&i.IpAddress,
		&i.CreatedAt,
	)
	return i, err
}

const createAuditLog = `
INSERT INTO admin_audit_logs (actor_id, action, resource_type, resource_id, details, ip_address)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + auditColumns

type CreateAuditLogParams struct {
	ActorID      *uuid.UUID `json:"actor_id"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Details      []byte     `json:"details"`
	IpAddress    string     `json:"ip_address"`
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (AdminAuditLog, error) {
	return scanAuditLog(q.db.QueryRow(ctx, createAuditLog,
		arg.ActorID,
		arg.Action,
		arg.ResourceType,
		arg.ResourceID,
		arg.Details,
		arg.IpAddress,
	))
}

const listAuditLogs = `
SELECT ` + auditColumns + `
FROM admin_audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

type ListAuditLogsParams struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

func (q *Queries) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AdminAuditLog, error) {
	return q.queryAuditLogs(ctx, listAuditLogs, arg.Limit, arg.Offset)
}

const listAuditLogsBetween = `
SELECT ` + auditColumns + `
FROM admin_audit_logs
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at`

type ListAuditLogsBetweenParams struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (q *Queries) ListAuditLogsBetween(ctx context.Context, arg ListAuditLogsBetweenParams) ([]AdminAuditLog, error) {
	return q.queryAuditLogs(ctx, listAuditLogsBetween, arg.From, arg.To)
}

const countAuditLogs = `SELECT COUNT(*) FROM admin_audit_logs`

func (q *Queries) CountAuditLogs(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAuditLogs).Scan(&count)
	return count, err
}

func (q *Queries) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]AdminAuditLog, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AdminAuditLog
	for rows.Next() {
		i, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
