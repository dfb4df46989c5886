package audit

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/example/lab-reservations/internal/scheduler"
)

// Operation is the kind of mutation a record documents.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	return o.rank() > 0
}

func (o Operation) rank() int {
	switch o {
	case OperationCreate:
		return 1
	case OperationUpdate:
		return 2
	case OperationDelete:
		return 3
	default:
		return 0
	}
}

// TimestampLayout is the canonical UTC encoding of operation timestamps. It is
// fixed width so that encoded values sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Key is the composite identity of a record.
type Key struct {
	ReservationID string
	Operation     Operation
	At            time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s", k.ReservationID, k.Operation, k.At.UTC().Format(TimestampLayout))
}

// Equal compares keys by value.
func (k Key) Equal(other Key) bool {
	return k.ReservationID == other.ReservationID && k.Operation == other.Operation && k.At.Equal(other.At)
}

// Actor identifies the owner who performed the operation.
type Actor struct {
	ID   string
	Name string
}

// Snapshot copies the reservation as it was when the operation happened.
type Snapshot struct {
	RoomID        string
	RoomName      string
	RoomOwnerName string
	OwnerID       string
	OwnerName     string
	Date          scheduler.Date
	Start         scheduler.TimeOfDay
	End           scheduler.TimeOfDay
	Subject       string
}

// SnapshotOf captures the fields of reservation that must survive its deletion.
func SnapshotOf(reservation scheduler.Reservation, room scheduler.Room, owner scheduler.Owner) Snapshot {
	return Snapshot{
		RoomID:        room.ID,
		RoomName:      room.Name,
		RoomOwnerName: room.OwnerName,
		OwnerID:       owner.ID,
		OwnerName:     owner.Name,
		Date:          reservation.Window.Date(),
		Start:         reservation.Window.Start(),
		End:           reservation.Window.End(),
		Subject:       reservation.Subject,
	}
}

// Place renders the room and its owner the way the history listing shows it.
func (s Snapshot) Place() string {
	if s.RoomOwnerName == "" {
		return s.RoomName
	}
	return s.RoomName + " - " + s.RoomOwnerName
}

// Record is one immutable ledger entry.
type Record struct {
	Key
	Actor      Actor
	Snapshot   Snapshot
	PrevDigest string
	Digest     string
}

// NewRecord validates the inputs and returns an unchained record.
func NewRecord(reservationID string, op Operation, at time.Time, actor Actor, snapshot Snapshot) (Record, error) {
	switch {
	case reservationID == "":
		return Record{}, errors.New("audit: reservation id is required")
	case !op.Valid():
		return Record{}, fmt.Errorf("audit: unknown operation %q", op)
	case at.IsZero():
		return Record{}, errors.New("audit: timestamp is required")
	case actor.ID == "":
		return Record{}, errors.New("audit: actor is required")
	case snapshot.RoomID == "":
		return Record{}, errors.New("audit: room is required")
	}
	return Record{
		Key:      Key{ReservationID: reservationID, Operation: op, At: at.UTC()},
		Actor:    actor,
		Snapshot: snapshot,
	}, nil
}

// chain links r to the previous digest and seals it.
func (r Record) chain(prev string) Record {
	r.PrevDigest = prev
	r.Digest = r.computeDigest()
	return r
}

func (r Record) computeDigest() string {
	h, _ := blake2b.New256(nil)
	fields := []string{
		r.PrevDigest,
		r.ReservationID,
		string(r.Operation),
		r.At.UTC().Format(TimestampLayout),
		r.Actor.ID,
		r.Actor.Name,
		r.Snapshot.RoomID,
		r.Snapshot.RoomName,
		r.Snapshot.RoomOwnerName,
		r.Snapshot.OwnerID,
		r.Snapshot.OwnerName,
		r.Snapshot.Date.String(),
		strconv.Itoa(int(r.Snapshot.Start)),
		strconv.Itoa(int(r.Snapshot.End)),
		r.Snapshot.Subject,
	}
	for _, field := range fields {
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{':'})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compare orders records by timestamp, then reservation id, then operation
// (CREATE < UPDATE < DELETE).
func Compare(a, b Record) int {
	if c := a.At.Compare(b.At); c != 0 {
		return c
	}
	if a.ReservationID != b.ReservationID {
		if a.ReservationID < b.ReservationID {
			return -1
		}
		return 1
	}
	switch ra, rb := a.Operation.rank(), b.Operation.rank(); {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// Sort orders records in place using Compare.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Compare(records[i], records[j]) < 0
	})
}
