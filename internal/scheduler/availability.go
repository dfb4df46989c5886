package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MaxRangeDays bounds the number of days a single availability query may span.
const MaxRangeDays = 366

// RoomInventory resolves the rooms owned by a centre or department.
type RoomInventory interface {
	FindRoomsByOwner(ctx context.Context, ownerName string) ([]Room, error)
}

// ReservationSource returns the reservations of a room whose date lies in [from, to].
type ReservationSource interface {
	FindByRoomAndDateRange(ctx context.Context, roomID string, from, to Date) ([]Reservation, error)
}

// Filter selects free rooms. OwnerName is mandatory; every other field is optional.
type Filter struct {
	DateFrom     *Date
	DateTo       *Date
	TimeFrom     *TimeOfDay
	TimeTo       *TimeOfDay
	MinCapacity  int
	MinComputers int
	OwnerName    string
}

// resolvedFilter is a Filter with defaults applied.
type resolvedFilter struct {
	from, to   Date
	start, end TimeOfDay
	filter     Filter
}

func (r resolvedFilter) window(d Date) TimeWindow {
	return TimeWindow{date: d, start: r.start, end: r.end}
}

func (r resolvedFilter) admits(room Room) bool {
	return room.Capacity >= r.filter.MinCapacity && room.Computers >= r.filter.MinComputers
}

// resolve applies defaults relative to today and validates the result.
func (f Filter) resolve(today Date) (resolvedFilter, error) {
	vErr := &InvalidFilterError{}

	if strings.TrimSpace(f.OwnerName) == "" {
		vErr.add("owner is required")
	}
	if f.MinCapacity < 0 {
		vErr.add("minimum capacity must not be negative")
	}
	if f.MinComputers < 0 {
		vErr.add("minimum computers must not be negative")
	}

	res := resolvedFilter{from: today, start: StartOfDay, end: EndOfDay, filter: f}
	if f.DateFrom != nil {
		res.from = *f.DateFrom
	}
	res.to = res.from
	if f.DateTo != nil {
		res.to = *f.DateTo
	}
	if res.from.After(res.to) {
		vErr.add("date from must not be after date to")
	} else if res.from.DaysUntil(res.to) >= MaxRangeDays {
		vErr.add(fmt.Sprintf("date range must not exceed %d days", MaxRangeDays))
	}

	if f.TimeFrom != nil {
		res.start = *f.TimeFrom
	}
	if f.TimeTo != nil {
		res.end = *f.TimeTo
	}
	if !res.start.Valid() || !res.end.Valid() {
		vErr.add("time out of range")
	} else if res.start >= res.end {
		vErr.add("time from must be before time to")
	}

	if err := vErr.orNil(); err != nil {
		return resolvedFilter{}, err
	}
	return res, nil
}

// Engine answers which rooms are free under a Filter. It only reads.
type Engine struct {
	rooms        RoomInventory
	reservations ReservationSource
	today        func() Date
	parallelism  int
}

// NewEngine wires the engine. today supplies the default start date; parallelism
// bounds concurrent per-room reservation reads.
func NewEngine(rooms RoomInventory, reservations ReservationSource, today func() Date, parallelism int) *Engine {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Engine{rooms: rooms, reservations: reservations, today: today, parallelism: parallelism}
}

// FindAvailableRooms returns the owner's rooms that satisfy the capacity and
// computer minimums and have no reservation overlapping the requested time
// window on any day of the requested date range, ordered by name.
func (e *Engine) FindAvailableRooms(ctx context.Context, filter Filter) ([]Room, error) {
	var today Date
	if e.today != nil {
		today = e.today()
	}
	resolved, err := filter.resolve(today)
	if err != nil {
		return nil, err
	}

	rooms, err := e.rooms.FindRoomsByOwner(ctx, strings.TrimSpace(filter.OwnerName))
	if err != nil {
		return nil, err
	}

	candidates := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		if resolved.admits(room) {
			candidates = append(candidates, room)
		}
	}

	free := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, room := range candidates {
		g.Go(func() error {
			existing, err := e.reservations.FindByRoomAndDateRange(gctx, room.ID, resolved.from, resolved.to)
			if err != nil {
				return err
			}
			free[i] = isFree(resolved, existing)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	available := make([]Room, 0, len(candidates))
	for i, room := range candidates {
		if free[i] {
			available = append(available, room)
		}
	}
	SortRooms(available)
	return available, nil
}

func isFree(resolved resolvedFilter, existing []Reservation) bool {
	for _, reservation := range existing {
		d := reservation.Window.Date()
		if d.Before(resolved.from) || d.After(resolved.to) {
			continue
		}
		if Overlaps(resolved.window(d), reservation.Window) {
			return false
		}
	}
	return true
}

// SortRooms orders rooms by name ignoring case, then by id.
func SortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := strings.ToLower(rooms[i].Name), strings.ToLower(rooms[j].Name)
		if a == b {
			return rooms[i].ID < rooms[j].ID
		}
		return a < b
	})
}
