package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

const auditColumns = `reservation_id, operation, occurred_at, actor_id, actor_name,
	room_id, room_name, room_owner_name, owner_id, owner_name,
	res_date, start_sec, end_sec, subject, prev_digest, digest`

// AuditRepository stores ledger records. It has no update or delete path.
type AuditRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func newAuditRepository(helper *QueryHelper) *AuditRepository {
	return &AuditRepository{helper: helper, mapper: NewErrorMapper()}
}

// LastDigest returns the digest of the record most recently appended for
// roomID. The head lives on the room row, which the booking transaction has
// already locked, so appends for different rooms never wait on each other.
func (r *AuditRepository) LastDigest(ctx context.Context, roomID string) (string, error) {
	var digest string
	if err := r.helper.QueryRow(ctx, r.helper.dialect.auditHeadQuery(), roomID).Scan(&digest); err != nil {
		return "", fmt.Errorf("read audit head of room %s: %w", roomID, r.mapper.MapError(err))
	}
	return digest, nil
}

// Append writes record and advances its room's chain head.
func (r *AuditRepository) Append(ctx context.Context, record audit.Record) error {
	s := record.Snapshot
	_, err := r.helper.Exec(ctx, `INSERT INTO audit_records (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ReservationID, string(record.Operation), record.At.UTC().Format(audit.TimestampLayout),
		record.Actor.ID, record.Actor.Name,
		s.RoomID, s.RoomName, s.RoomOwnerName, s.OwnerID, s.OwnerName,
		s.Date.String(), int(s.Start), int(s.End), s.Subject,
		record.PrevDigest, record.Digest,
	)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrDuplicate) {
			return fmt.Errorf("%w: %s", audit.ErrDuplicateRecord, record.Key)
		}
		return fmt.Errorf("append audit record: %w", mapped)
	}
	result, err := r.helper.Exec(ctx, `UPDATE rooms SET audit_head = ? WHERE id = ?`, record.Digest, s.RoomID)
	if err != nil {
		return fmt.Errorf("advance audit head: %w", r.mapper.MapError(err))
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("advance audit head: %w", err)
	} else if n == 0 {
		return fmt.Errorf("advance audit head of room %s: %w", s.RoomID, persistence.ErrNotFound)
	}
	return nil
}

// ListByTimeRange returns records with from <= timestamp < to.
func (r *AuditRepository) ListByTimeRange(ctx context.Context, from, to *time.Time) ([]audit.Record, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE 1 = 1`
	var args []any
	if from != nil {
		query += ` AND occurred_at >= ?`
		args = append(args, from.UTC().Format(audit.TimestampLayout))
	}
	if to != nil {
		query += ` AND occurred_at < ?`
		args = append(args, to.UTC().Format(audit.TimestampLayout))
	}
	return r.list(ctx, query+` ORDER BY occurred_at, reservation_id, seq`, args...)
}

// ListAll returns every record in append order.
func (r *AuditRepository) ListAll(ctx context.Context) ([]audit.Record, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM audit_records ORDER BY seq`)
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...any) ([]audit.Record, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	records := []audit.Record{}
	for rows.Next() {
		var (
			rec        audit.Record
			op, at     string
			date       string
			start, end int
		)
		s := &rec.Snapshot
		if err := rows.Scan(
			&rec.ReservationID, &op, &at, &rec.Actor.ID, &rec.Actor.Name,
			&s.RoomID, &s.RoomName, &s.RoomOwnerName, &s.OwnerID, &s.OwnerName,
			&date, &start, &end, &s.Subject, &rec.PrevDigest, &rec.Digest,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		rec.Operation = audit.Operation(op)
		if rec.At, err = time.Parse(audit.TimestampLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at: %w", err)
		}
		if s.Date, err = scheduler.ParseDate(date); err != nil {
			return nil, fmt.Errorf("audit record %s: %w", rec.Key, err)
		}
		s.Start, s.End = scheduler.TimeOfDay(start), scheduler.TimeOfDay(end)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}
