package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConflict(t *testing.T) {
	day := NewDate(2024, time.March, 1)
	existing := []Reservation{
		{ID: "res-1", RoomID: "r1", Window: mustWindow(t, day, "09:00", "11:00")},
		{ID: "res-2", RoomID: "r1", Window: mustWindow(t, day, "13:00", "14:00")},
		{ID: "res-3", RoomID: "r1", Window: mustWindow(t, day.AddDays(1), "09:00", "11:00")},
	}

	t.Run("empty existing always succeeds", func(t *testing.T) {
		candidate := Reservation{ID: "new", RoomID: "r1", Window: mustWindow(t, day, "09:00", "11:00")}
		assert.NoError(t, CheckConflict(candidate, nil, ""))
	})

	t.Run("back to back bookings are accepted", func(t *testing.T) {
		candidate := Reservation{ID: "new", RoomID: "r1", Window: mustWindow(t, day, "11:00", "13:00")}
		assert.NoError(t, CheckConflict(candidate, existing, ""))
	})

	t.Run("overlap reports colliding ids", func(t *testing.T) {
		candidate := Reservation{ID: "new", RoomID: "r1", Window: mustWindow(t, day, "10:00", "13:30")}
		err := CheckConflict(candidate, existing, "")

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []string{"res-1", "res-2"}, conflict.ReservationIDs)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "res-1, res-2")
	})

	t.Run("update does not collide with itself", func(t *testing.T) {
		candidate := existing[0]
		assert.NoError(t, CheckConflict(candidate, existing, candidate.ID))
		candidate.ID = ""
		assert.NoError(t, CheckConflict(candidate, existing, "res-1"))
	})

	t.Run("update still collides with other reservations", func(t *testing.T) {
		candidate := existing[0]
		candidate.Window = mustWindow(t, day, "10:00", "13:30")
		err := CheckConflict(candidate, existing, candidate.ID)

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []string{"res-2"}, conflict.ReservationIDs)
	})

	t.Run("rejects any overlap and accepts none", func(t *testing.T) {
		starts := []string{"08:00", "08:30", "09:00", "10:00", "10:30", "11:00", "12:00", "12:30", "13:00", "14:00"}
		for _, start := range starts {
			for _, end := range []string{"09:00", "09:30", "11:00", "11:30", "13:00", "13:30", "15:00"} {
				s, e := mustTime(t, start), mustTime(t, end)
				if s >= e {
					continue
				}
				w, err := NewTimeWindow(day, s, e)
				require.NoError(t, err)

				overlapsAny := false
				for _, other := range existing {
					if Overlaps(w, other.Window) {
						overlapsAny = true
					}
				}

				err = CheckConflict(Reservation{ID: "new", Window: w}, existing, "")
				if overlapsAny {
					assert.ErrorIs(t, err, ErrConflict, "window %s", w)
				} else {
					assert.NoError(t, err, "window %s", w)
				}
			}
		}
	})
}
