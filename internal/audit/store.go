package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists audit entries in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const insertEntry = `
INSERT INTO bill_audit_log (id, action, bill_id, status, request_id, route, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const listEntries = `
SELECT id, action, bill_id, status, request_id, route, metadata, created_at
FROM bill_audit_log
WHERE bill_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

// Insert stores one entry.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.Pool.Exec(ctx, insertEntry,
		pgtype.UUID{Bytes: e.ID, Valid: true},
		string(e.Action),
		e.BillID,
		int32(e.Status),
		toNullText(e.RequestID),
		toNullText(e.Route),
		[]byte(e.Metadata),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// ListForBill returns entries for a bill, newest first.
func (s PGStore) ListForBill(ctx context.Context, billID string, limit, offset int) ([]Entry, error) {
	rows, err := s.Pool.Query(ctx, listEntries, billID, int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			id        pgtype.UUID
			action    string
			e         Entry
			status    int32
			requestID pgtype.Text
			route     pgtype.Text
			metadata  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &action, &e.BillID, &status, &requestID, &route, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.ID = uuid.UUID(id.Bytes)
		e.Action = Action(action)
		e.Status = int(status)
		e.RequestID = requestID.String
		e.Route = route.String
		e.Metadata = metadata
		e.CreatedAt = createdAt
		out = append(out, e)
	}
	return out, rows.Err()
}

func toNullText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
