package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

// CreateCall inserts a new call record. The unique index on file_name turns
// a concurrent duplicate into a silent conflict, which is surfaced to the
// caller as the ErrCallExists kind instead of an insert error.
func (d *Directory) CreateCall(ctx context.Context, call *domain.Call) error {
	result, err := d.db.ExecContext(ctx, `
INSERT INTO calls (id, call_date, caller_name, client_name, phone_number, file_name, duration, transcript, file_exists, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (file_name) DO NOTHING
`, call.ID, call.CallDate, call.CallerName, call.ClientName, call.PhoneNumber, call.FileName,
		call.Duration, call.Transcript, call.FileExists, call.CreatedAt, call.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create call rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrCallExists, "create call", fmt.Errorf("duplicate recording filename %q", call.FileName))
	}
	return nil
}

func (d *Directory) FindCallByFilename(ctx context.Context, fileName string) (*domain.Call, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, call_date, caller_name, client_name, phone_number, file_name, duration, transcript, file_exists, created_at, updated_at
FROM calls
WHERE file_name = $1
`, fileName)

	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find call by filename", err)
		}
		return nil, fmt.Errorf("find call by filename: %w", err)
	}
	return call, nil
}

func (d *Directory) SetCallFileExists(ctx context.Context, callID string, exists bool) error {
	result, err := d.db.ExecContext(ctx, `
UPDATE calls
SET file_exists = $2, updated_at = $3
WHERE id = $1
`, callID, exists, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set call file exists: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set call file exists rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "set call file exists", fmt.Errorf("call id=%s", callID))
	}
	return nil
}

func (d *Directory) UpdateCallTranscript(ctx context.Context, callID, transcript string) error {
	result, err := d.db.ExecContext(ctx, `
UPDATE calls
SET transcript = $2, updated_at = $3
WHERE id = $1
`, callID, transcript, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update call transcript: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update call transcript rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update call transcript", fmt.Errorf("call id=%s", callID))
	}
	return nil
}

func (d *Directory) ListRecentCalls(ctx context.Context, limit int) ([]domain.Call, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT id, call_date, caller_name, client_name, phone_number, file_name, duration, transcript, file_exists, created_at, updated_at
FROM calls
ORDER BY call_date DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent calls: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Call, 0)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, *call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*domain.Call, error) {
	var call domain.Call
	var clientName sql.NullString
	var transcript sql.NullString
	err := row.Scan(
		&call.ID,
		&call.CallDate,
		&call.CallerName,
		&clientName,
		&call.PhoneNumber,
		&call.FileName,
		&call.Duration,
		&transcript,
		&call.FileExists,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if clientName.Valid {
		call.ClientName = &clientName.String
	}
	if transcript.Valid {
		call.Transcript = &transcript.String
	}
	return &call, nil
}
