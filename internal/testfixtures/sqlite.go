package testfixtures

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/persistence/sqlstore"
	"github.com/example/lab-reservations/internal/scheduler"
)

// SQLiteHarness provides a migrated store backed by a temporary SQLite file
// for integration-style tests.
type SQLiteHarness struct {
	Store *sqlstore.Store
	Path  string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// SQLiteDSN returns the DSN the harness uses for a database file at path.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "labs.db")
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(sqlstore.DialectSQLite, SQLiteDSN(path)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		Path:  path,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Seed writes owners and rooms in one transaction. Centres must come before
// the departments that reference them.
func (h *SQLiteHarness) Seed(tb testing.TB, owners []scheduler.Owner, rooms []scheduler.Room) {
	tb.Helper()

	err := h.Store.Atomically(context.Background(), func(tx persistence.Tx) error {
		for _, owner := range owners {
			if err := tx.Catalog().UpsertOwner(context.Background(), owner); err != nil {
				return fmt.Errorf("owner %s: %w", owner.ID, err)
			}
		}
		for _, room := range rooms {
			if err := tx.Catalog().UpsertRoom(context.Background(), room); err != nil {
				return fmt.Errorf("room %s: %w", room.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("failed to seed storage: %v", err)
	}
}

// AuditCount returns how many ledger records exist for reservationID.
func (h *SQLiteHarness) AuditCount(tb testing.TB, reservationID string) int {
	tb.Helper()

	records, err := h.Store.Audit().ListAll(context.Background())
	if err != nil {
		tb.Fatalf("failed to list audit records: %v", err)
	}
	n := 0
	for _, record := range records {
		if record.ReservationID == reservationID {
			n++
		}
	}
	return n
}
