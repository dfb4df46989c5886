package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchFilter_Validate(t *testing.T) {
	day := NewDate(2024, time.May, 6)
	next := day.AddDays(1)
	nine := mustTime(t, "09:00")
	ten := mustTime(t, "10:00")

	assert.NoError(t, SearchFilter{}.Validate())
	assert.NoError(t, SearchFilter{DateFrom: &day, DateTo: &day, TimeFrom: &nine, TimeTo: &ten}.Validate())

	err := SearchFilter{DateFrom: &next, DateTo: &day, TimeFrom: &ten, TimeTo: &nine}.Validate()
	require.ErrorIs(t, err, ErrInvalidFilter)
	var filterErr *InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Len(t, filterErr.Reasons, 2)

	err = SearchFilter{TimeFrom: &nine, TimeTo: &nine}.Validate()
	assert.ErrorIs(t, err, ErrInvalidFilter, "an empty time range is rejected")
}

func TestSortReservations(t *testing.T) {
	day := NewDate(2024, time.May, 6)
	reservations := []Reservation{
		{ID: "d", RoomID: "r1", Window: mustWindow(t, day.AddDays(1), "08:00", "09:00")},
		{ID: "c", RoomID: "r2", Window: mustWindow(t, day, "09:00", "10:00")},
		{ID: "b", RoomID: "r1", Window: mustWindow(t, day, "09:00", "10:00")},
		{ID: "a", RoomID: "r1", Window: mustWindow(t, day, "11:00", "12:00")},
	}

	SortReservations(reservations)

	got := make([]string, 0, len(reservations))
	for _, r := range reservations {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, got)
}
