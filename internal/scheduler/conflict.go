package scheduler

import (
	"errors"
	"sort"
	"strings"
)

// ErrConflict matches any *ConflictError via errors.Is.
var ErrConflict = errors.New("scheduler: reservation conflict")

// ConflictError lists the reservations that block a candidate window.
type ConflictError struct {
	ReservationIDs []string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil || len(e.ReservationIDs) == 0 {
		return ErrConflict.Error()
	}
	return ErrConflict.Error() + " with " + strings.Join(e.ReservationIDs, ", ")
}

// Is lets callers test for ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// CheckConflict reports whether candidate collides with any of existing. The
// caller narrows existing to the candidate's room. Reservations sharing the
// candidate's id, or equal to excludeID, are ignored so an update does not
// collide with itself.
func CheckConflict(candidate Reservation, existing []Reservation, excludeID string) error {
	var colliding []string
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if excludeID != "" && other.ID == excludeID {
			continue
		}
		if Overlaps(candidate.Window, other.Window) {
			colliding = append(colliding, other.ID)
		}
	}
	if len(colliding) == 0 {
		return nil
	}
	sort.Strings(colliding)
	return &ConflictError{ReservationIDs: colliding}
}
