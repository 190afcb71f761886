package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/db"
)

var ErrInvalidRange = errors.New("audit: export range is empty or inverted")

// ObjectStore is where exports are written.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
	PresignGet(ctx context.Context, key string, lifetime time.Duration) (string, error)
}

type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Exporter struct {
	recorder *Recorder
	objects  ObjectStore
	now      func() time.Time
}

func NewExporter(recorder *Recorder, objects ObjectStore) *Exporter {
	return &Exporter{recorder: recorder, objects: objects, now: time.Now}
}

var csvHeader = []string{"id", "created_at", "actor_id", "action", "resource_type", "resource_id", "ip_address", "details"}

// Export writes entries in [from, to) as CSV and returns a presigned download link.
func (e *Exporter) Export(ctx context.Context, actor uuid.UUID, ip string, from, to time.Time) (*ExportResult, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	rows, err := e.recorder.store.ListAuditLogsBetween(ctx, db.ListAuditLogsBetweenParams{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit logs: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, rows); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	// ulid keys sort by creation time within a day's prefix
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	key := fmt.Sprintf("audit-exports/%s/%s.csv", now.Format("2006/01/02"), id)
	if err := e.objects.PutObject(ctx, key, &buf, "text/csv"); err != nil {
		return nil, err
	}

	url, err := e.objects.PresignGet(ctx, key, config.AuditExportURLLifetime)
	if err != nil {
		return nil, err
	}

	if err := e.recorder.Record(ctx, Entry{
		ActorID:      &actor,
		Action:       ActionAuditExported,
		ResourceType: "audit_logs",
		ResourceID:   key,
		Details: map[string]any{
			"from": from.UTC().Format(time.RFC3339),
			"to":   to.UTC().Format(time.RFC3339),
			"rows": len(rows),
		},
		IP: ip,
	}); err != nil {
		return nil, err
	}

	return &ExportResult{
		Key:       key,
		URL:       url,
		Rows:      len(rows),
		ExpiresAt: now.Add(config.AuditExportURLLifetime),
	}, nil
}

func writeCSV(w io.Writer, rows []db.AdminAuditLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range rows {
		actor := ""
		if row.ActorID != nil {
			actor = row.ActorID.String()
		}
		record := []string{
			row.ID.String(),
			row.CreatedAt.UTC().Format(time.RFC3339),
			actor,
			row.Action,
			row.ResourceType,
			row.ResourceID,
			row.IpAddress,
			string(row.Details),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", strconv.Quote(row.ID.String()), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
