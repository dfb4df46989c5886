// Package audit keeps the append-only history of reservation mutations.
//
// Records are chained per room: each one carries the BLAKE2b-256 digest of
// its own fields and of the record appended before it for the same room, so
// any edit made to stored history behind the ledger's back is detected by
// Verify while bookings of different rooms never share a chain head.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/lab-reservations/internal/scheduler"
)

var (
	// ErrDuplicateRecord is returned when a record with the same key already exists.
	ErrDuplicateRecord = errors.New("audit: duplicate record")
	// ErrChainBroken reports stored history that no longer matches its digests.
	ErrChainBroken = errors.New("audit: digest chain broken")
)

// ChainError identifies the first record failing verification.
type ChainError struct {
	Key    Key
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrChainBroken, e.Key, e.Reason)
}

func (e *ChainError) Is(target error) bool {
	return target == ErrChainBroken
}

// Appender writes records. Implementations run inside the same transaction as
// the reservation mutation being recorded.
type Appender interface {
	// LastDigest returns the digest of the latest record for roomID, or "".
	LastDigest(ctx context.Context, roomID string) (string, error)
	Append(ctx context.Context, record Record) error
}

// Reader lists stored records.
type Reader interface {
	// ListByTimeRange returns records whose timestamp lies in [from, to).
	// A nil bound is open.
	ListByTimeRange(ctx context.Context, from, to *time.Time) ([]Record, error)
	// ListAll returns every record in append order.
	ListAll(ctx context.Context) ([]Record, error)
}

// Ledger records operations and answers history queries.
type Ledger struct {
	reader Reader
	loc    *time.Location
}

// NewLedger returns a ledger reading from reader. loc decides which calendar
// day an operation timestamp belongs to.
func NewLedger(reader Reader, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{reader: reader, loc: loc}
}

// Record appends exactly one record for the operation through appender.
func (l *Ledger) Record(ctx context.Context, appender Appender, reservationID string, op Operation, actor Actor, snapshot Snapshot, at time.Time) (Record, error) {
	record, err := NewRecord(reservationID, op, at, actor, snapshot)
	if err != nil {
		return Record{}, err
	}
	prev, err := appender.LastDigest(ctx, record.Snapshot.RoomID)
	if err != nil {
		return Record{}, fmt.Errorf("read last digest: %w", err)
	}
	record = record.chain(prev)
	if err := appender.Append(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// QueryByDateRange returns records whose operation date, in the ledger's
// zone, lies in [from, to]. Either bound may be nil.
func (l *Ledger) QueryByDateRange(ctx context.Context, from, to *scheduler.Date) ([]Record, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, &scheduler.InvalidFilterError{Reasons: []string{"date from must not be after date to"}}
	}

	var lower, upper *time.Time
	if from != nil {
		t := from.In(l.loc)
		lower = &t
	}
	if to != nil {
		t := to.AddDays(1).In(l.loc)
		upper = &t
	}

	records, err := l.reader.ListByTimeRange(ctx, lower, upper)
	if err != nil {
		return nil, err
	}
	Sort(records)
	return records, nil
}

// Verify recomputes every room's digest chain over all stored records and
// returns the number of records checked.
func (l *Ledger) Verify(ctx context.Context) (int, error) {
	records, err := l.reader.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	heads := make(map[string]string)
	for i, record := range records {
		room := record.Snapshot.RoomID
		if record.PrevDigest != heads[room] {
			return i, &ChainError{Key: record.Key, Reason: "previous digest mismatch"}
		}
		if record.computeDigest() != record.Digest {
			return i, &ChainError{Key: record.Key, Reason: "content digest mismatch"}
		}
		heads[room] = record.Digest
	}
	return len(records), nil
}
