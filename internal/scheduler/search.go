package scheduler

import "sort"

// SearchFilter narrows a reservation listing. All fields are optional.
type SearchFilter struct {
	DateFrom  *Date
	DateTo    *Date
	TimeFrom  *TimeOfDay
	TimeTo    *TimeOfDay
	OwnerName string
}

// Validate rejects inverted ranges.
func (f SearchFilter) Validate() error {
	vErr := &InvalidFilterError{}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		vErr.add("date from must not be after date to")
	}
	if f.TimeFrom != nil && f.TimeTo != nil && *f.TimeFrom >= *f.TimeTo {
		vErr.add("time from must be before time to")
	}
	return vErr.orNil()
}

// Range returns the temporal bounds of the filter.
func (f SearchFilter) Range() Range {
	return Range{DateFrom: f.DateFrom, DateTo: f.DateTo, TimeFrom: f.TimeFrom, TimeTo: f.TimeTo}
}

// SortReservations orders reservations chronologically, then by room and id.
func SortReservations(reservations []Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i].Window, reservations[j].Window
		if c := a.Date().Compare(b.Date()); c != 0 {
			return c < 0
		}
		if a.Start() != b.Start() {
			return a.Start() < b.Start()
		}
		if reservations[i].RoomID != reservations[j].RoomID {
			return reservations[i].RoomID < reservations[j].RoomID
		}
		return reservations[i].ID < reservations[j].ID
	})
}
