// Package events publishes reservation change notifications after a
// mutation has been committed.
package events

import (
	"context"
	"time"

	"github.com/example/lab-reservations/internal/audit"
)

// ReservationChanged is emitted once per committed create, update or delete.
type ReservationChanged struct {
	EventID       string    `json:"event_id"`
	Operation     string    `json:"operation"`
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	RoomName      string    `json:"room_name"`
	OwnerID       string    `json:"owner_id"`
	OwnerName     string    `json:"owner_name"`
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Subject       string    `json:"subject"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// FromRecord builds the event describing a ledger record.
func FromRecord(eventID string, record audit.Record) ReservationChanged {
	s := record.Snapshot
	return ReservationChanged{
		EventID:       eventID,
		Operation:     string(record.Operation),
		ReservationID: record.ReservationID,
		RoomID:        s.RoomID,
		RoomName:      s.RoomName,
		OwnerID:       s.OwnerID,
		OwnerName:     s.OwnerName,
		Date:          s.Date.String(),
		Start:         s.Start.String(),
		End:           s.End.String(),
		Subject:       s.Subject,
		ActorID:       record.Actor.ID,
		ActorName:     record.Actor.Name,
		OccurredAt:    record.At,
	}
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event ReservationChanged) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationChanged) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
