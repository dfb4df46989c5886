// Package sqlstore implements the persistence contracts on database/sql for
// SQLite, MySQL and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

var (
	_ persistence.UnitOfWork       = (*Store)(nil)
	_ persistence.ReservationStore = (*ReservationRepository)(nil)
	_ persistence.RoomInventory    = (*RoomRepository)(nil)
	_ persistence.OwnerDirectory   = (*OwnerRepository)(nil)
	_ persistence.AuditStore       = (*AuditRepository)(nil)
	_ persistence.Tx               = (*txView)(nil)
)

// Store is the database-backed implementation of the persistence contracts.
// Reads made through its repositories run outside any transaction; writes
// that must be atomic go through Atomically.
type Store struct {
	pool *ConnectionPool
	now  func() time.Time

	reservations *ReservationRepository
	rooms        *RoomRepository
	owners       *OwnerRepository
	audit        *AuditRepository
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore wraps an open pool.
func NewStore(pool *ConnectionPool) *Store {
	helper := NewQueryHelper(pool.DB(), pool.Dialect())
	return &Store{
		pool:         pool,
		now:          time.Now,
		reservations: newReservationRepository(helper),
		rooms:        newRoomRepository(helper),
		owners:       newOwnerRepository(helper),
		audit:        newAuditRepository(helper),
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Reservations() *ReservationRepository { return s.reservations }
func (s *Store) Rooms() *RoomRepository               { return s.rooms }
func (s *Store) Owners() *OwnerRepository             { return s.owners }
func (s *Store) Audit() *AuditRepository              { return s.audit }

// Atomically runs fn inside one database transaction.
func (s *Store) Atomically(ctx context.Context, fn func(tx persistence.Tx) error) error {
	return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(newTxView(tx, s.pool.Dialect()))
	})
}

type txView struct {
	helper       *QueryHelper
	reservations *ReservationRepository
	rooms        *RoomRepository
	owners       *OwnerRepository
	audit        *AuditRepository
}

func newTxView(tx *sql.Tx, dialect Dialect) *txView {
	helper := NewQueryHelper(tx, dialect)
	return &txView{
		helper:       helper,
		reservations: newReservationRepository(helper),
		rooms:        newRoomRepository(helper),
		owners:       newOwnerRepository(helper),
		audit:        newAuditRepository(helper),
	}
}

func (t *txView) Reservations() persistence.ReservationStore { return t.reservations }
func (t *txView) Rooms() persistence.RoomInventory           { return t.rooms }
func (t *txView) Owners() persistence.OwnerDirectory         { return t.owners }
func (t *txView) Audit() audit.Appender                      { return t.audit }
func (t *txView) Catalog() persistence.CatalogWriter         { return catalogWriter{rooms: t.rooms, owners: t.owners} }

func (t *txView) LockRoom(ctx context.Context, roomID string) error {
	query := t.helper.dialect.lockRoomQuery()
	if t.helper.dialect == DialectSQLite {
		result, err := t.helper.Exec(ctx, query, roomID)
		if err != nil {
			return fmt.Errorf("lock room %s: %w", roomID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("lock room %s: %w", roomID, err)
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	}

	var id string
	if err := t.helper.QueryRow(ctx, query, roomID).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return persistence.ErrNotFound
		}
		return fmt.Errorf("lock room %s: %w", roomID, err)
	}
	return nil
}

type catalogWriter struct {
	rooms  *RoomRepository
	owners *OwnerRepository
}

func (c catalogWriter) UpsertOwner(ctx context.Context, owner scheduler.Owner) error {
	return c.owners.UpsertOwner(ctx, owner)
}

func (c catalogWriter) UpsertRoom(ctx context.Context, room scheduler.Room) error {
	return c.rooms.UpsertRoom(ctx, room)
}
