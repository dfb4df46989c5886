// Package persistence defines the storage contracts the reservation services
// depend on. Implementations live in subpackages.
package persistence

import (
	"context"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/scheduler"
)

// ReservationStore is the durable collection of reservations.
type ReservationStore interface {
	// FindByRoomAndDateRange returns the room's reservations dated in [from, to].
	FindByRoomAndDateRange(ctx context.Context, roomID string, from, to scheduler.Date) ([]scheduler.Reservation, error)
	GetReservation(ctx context.Context, id string) (scheduler.Reservation, error)
	// Save inserts the reservation or replaces the stored one with the same id.
	Save(ctx context.Context, reservation scheduler.Reservation) (scheduler.Reservation, error)
	Delete(ctx context.Context, id string) error
	// FindFromNow returns reservations starting strictly after the given
	// date and time of day.
	FindFromNow(ctx context.Context, today scheduler.Date, now scheduler.TimeOfDay) ([]scheduler.Reservation, error)
	Search(ctx context.Context, filter scheduler.SearchFilter) ([]scheduler.Reservation, error)
}

// RoomInventory lists the bookable rooms.
type RoomInventory interface {
	// FindRoomsByOwner matches the owner name exactly, ignoring case.
	FindRoomsByOwner(ctx context.Context, ownerName string) ([]scheduler.Room, error)
	ListRooms(ctx context.Context) ([]scheduler.Room, error)
	GetRoom(ctx context.Context, id string) (scheduler.Room, error)
}

// OwnerDirectory lists centres and departments.
type OwnerDirectory interface {
	ListOwners(ctx context.Context) ([]scheduler.Owner, error)
	// ListCentres returns owners tagged as centres.
	ListCentres(ctx context.Context) ([]scheduler.Owner, error)
	// SearchOwners matches a case-insensitive substring of the name. Empty
	// text returns every owner.
	SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error)
	GetOwner(ctx context.Context, id string) (scheduler.Owner, error)
}

// CatalogWriter loads owners and rooms. Upserts are idempotent.
type CatalogWriter interface {
	UpsertOwner(ctx context.Context, owner scheduler.Owner) error
	UpsertRoom(ctx context.Context, room scheduler.Room) error
}

// AuditStore persists ledger records. It exposes no update or delete.
type AuditStore interface {
	audit.Appender
	audit.Reader
}

// Tx is the view of the store inside one atomic unit of work.
type Tx interface {
	Reservations() ReservationStore
	Rooms() RoomInventory
	Owners() OwnerDirectory
	Audit() audit.Appender
	Catalog() CatalogWriter
	// LockRoom serializes writers of the room until the unit of work ends.
	LockRoom(ctx context.Context, roomID string) error
}

// UnitOfWork runs fn atomically: every write made through tx is committed
// when fn returns nil and rolled back otherwise.
type UnitOfWork interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}
