package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/lab-reservations/internal/scheduler"
)

var (
	ownerCounter       uint64
	roomCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate is the calendar date of ReferenceTime.
func ReferenceDate() scheduler.Date {
	return scheduler.DateOf(referenceTime)
}

// ----------------------------- Owner fixtures -----------------------------

// OwnerOption configures a generated owner.
type OwnerOption func(*scheduler.Owner)

// NewCentreFixture returns a deterministic centre.
func NewCentreFixture(opts ...OwnerOption) scheduler.Owner {
	idx := atomic.AddUint64(&ownerCounter, 1)
	owner := scheduler.NewCentre(fmt.Sprintf("centre-%03d", idx), fmt.Sprintf("Centre %03d", idx))
	for _, opt := range opts {
		opt(&owner)
	}
	return owner
}

// NewDepartmentFixture returns a deterministic department under parentID.
func NewDepartmentFixture(parentID string, opts ...OwnerOption) scheduler.Owner {
	idx := atomic.AddUint64(&ownerCounter, 1)
	owner := scheduler.NewDepartment(fmt.Sprintf("dept-%03d", idx), fmt.Sprintf("Department %03d", idx), parentID)
	for _, opt := range opts {
		opt(&owner)
	}
	return owner
}

// WithOwnerID overrides the generated owner id.
func WithOwnerID(id string) OwnerOption {
	return func(o *scheduler.Owner) { o.ID = id }
}

// WithOwnerName overrides the generated owner name.
func WithOwnerName(name string) OwnerOption {
	return func(o *scheduler.Owner) { o.Name = name }
}

// ----------------------------- Room fixtures ------------------------------

// RoomOption configures a generated room.
type RoomOption func(*scheduler.Room)

// NewRoomFixture returns a deterministic room owned by owner.
func NewRoomFixture(owner scheduler.Owner, opts ...RoomOption) scheduler.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	room := scheduler.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Lab %03d", idx),
		OwnerID:   owner.ID,
		OwnerName: owner.Name,
		Capacity:  20,
		Computers: 10,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room id.
func WithRoomID(id string) RoomOption {
	return func(r *scheduler.Room) { r.ID = id }
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(r *scheduler.Room) { r.Name = name }
}

// WithCapacity sets the seat and computer counts.
func WithCapacity(capacity, computers int) RoomOption {
	return func(r *scheduler.Room) {
		r.Capacity = capacity
		r.Computers = computers
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationOption configures a generated reservation.
type ReservationOption func(*scheduler.Reservation)

// NewReservationFixture books room for owner on ReferenceDate from 09:00 to 10:00.
func NewReservationFixture(room scheduler.Room, owner scheduler.Owner, opts ...ReservationOption) scheduler.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	reservation := scheduler.Reservation{
		ID:      fmt.Sprintf("res-fixture-%03d", idx),
		RoomID:  room.ID,
		OwnerID: owner.ID,
		Window:  MustWindow(ReferenceDate(), "09:00", "10:00"),
		Subject: fmt.Sprintf("Subject %03d", idx),
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the generated id.
func WithReservationID(id string) ReservationOption {
	return func(r *scheduler.Reservation) { r.ID = id }
}

// WithWindow books date from start to end (HH:MM).
func WithWindow(date scheduler.Date, start, end string) ReservationOption {
	return func(r *scheduler.Reservation) { r.Window = MustWindow(date, start, end) }
}

// WithSubject overrides the generated subject.
func WithSubject(subject string) ReservationOption {
	return func(r *scheduler.Reservation) { r.Subject = subject }
}

// MustWindow builds a window from HH:MM strings and panics on bad input.
func MustWindow(date scheduler.Date, start, end string) scheduler.TimeWindow {
	from, err := scheduler.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	to, err := scheduler.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	window, err := scheduler.NewTimeWindow(date, from, to)
	if err != nil {
		panic(err)
	}
	return window
}
