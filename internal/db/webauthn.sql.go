package db

import (
	"context"

	"github.com/google/uuid"
)

const webauthnColumns = `credential_id, user_id, public_key, transports, sign_count, created_at, last_used_at`

func scanWebauthnCredential(row interface{ Scan(...any) error }) (WebauthnCredential, error) {
	var i WebauthnCredential
	err := row.Scan(
		&i.CredentialID,
		&i.UserID,
		&i.PublicKey,
		&i.Transports,
		&i.SignCount,
		&i.CreatedAt,
		&i.LastUsedAt,
	)
	return i, err
}

const createWebauthnCredential = `
INSERT INTO webauthn_credentials (credential_id, user_id, public_key, transports)
VALUES ($1, $2, $3, $4)
RETURNING ` + webauthnColumns

type CreateWebauthnCredentialParams struct {
	CredentialID string    `json:"credential_id"`
	UserID       uuid.UUID `json:"user_id"`
	PublicKey    string    `json:"public_key"`
	Transports   []string  `json:"transports"`
}

func (q *Queries) CreateWebauthnCredential(ctx context.Context, arg CreateWebauthnCredentialParams) (WebauthnCredential, error) {
	return scanWebauthnCredential(q.db.QueryRow(ctx, createWebauthnCredential,
		arg.CredentialID,
		arg.UserID,
		arg.PublicKey,
		arg.Transports,
	))
}

const getWebauthnCredential = `SELECT ` + webauthnColumns + ` FROM webauthn_credentials WHERE credential_id = $1`

func (q *Queries) GetWebauthnCredential(ctx context.Context, credentialID string) (WebauthnCredential, error) {
	return scanWebauthnCredential(q.db.QueryRow(ctx, getWebauthnCredential, credentialID))
}

const listWebauthnCredentialsByUser = `
SELECT ` + webauthnColumns + `
FROM webauthn_credentials
WHERE user_id = $1
ORDER BY created_at`

func (q *Queries) ListWebauthnCredentialsByUser(ctx context.Context, userID uuid.UUID) ([]WebauthnCredential, error) {
	rows, err := q.db.Query(ctx, listWebauthnCredentialsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebauthnCredential
	for rows.Next() {
		i, err := scanWebauthnCredential(rows)
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

const touchWebauthnCredential = `UPDATE webauthn_credentials SET last_used_at = NOW() WHERE credential_id = $1`

func (q *Queries) TouchWebauthnCredential(ctx context.Context, credentialID string) error {
	_, err := q.db.Exec(ctx, touchWebauthnCredential, credentialID)
	return err
}
