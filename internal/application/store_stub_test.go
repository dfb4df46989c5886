package application

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

// memoryStore is an in-memory unit of work. Atomically works on a copy of
// the state and swaps it in only when fn succeeds.
type memoryStore struct {
	mu    sync.Mutex
	state memState

	// failOn makes the named write fail inside a transaction.
	failOn map[string]error
	locked []string
}

type memState struct {
	owners       map[string]scheduler.Owner
	rooms        map[string]scheduler.Room
	reservations map[string]scheduler.Reservation
	records      []audit.Record
	heads        map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		state: memState{
			owners:       map[string]scheduler.Owner{},
			rooms:        map[string]scheduler.Room{},
			reservations: map[string]scheduler.Reservation{},
			heads:        map[string]string{},
		},
		failOn: map[string]error{},
	}
}

func (s memState) clone() memState {
	return memState{
		owners:       maps.Clone(s.owners),
		rooms:        maps.Clone(s.rooms),
		reservations: maps.Clone(s.reservations),
		records:      append([]audit.Record(nil), s.records...),
		heads:        maps.Clone(s.heads),
	}
}

func (m *memoryStore) addOwner(owner scheduler.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.owners[owner.ID] = owner
}

func (m *memoryStore) addRoom(room scheduler.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.OwnerName = m.state.owners[room.OwnerID].Name
	m.state.rooms[room.ID] = room
}

func (m *memoryStore) addReservation(r scheduler.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.reservations[r.ID] = r
}

func (m *memoryStore) recordsFor(reservationID string) []audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Record
	for _, r := range m.state.records {
		if r.ReservationID == reservationID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memoryStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.reservations)
}

func (m *memoryStore) Atomically(ctx context.Context, fn func(tx persistence.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memView{st: &work, store: m}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memoryStore) view() *memView {
	return &memView{st: &m.state, store: m}
}

// Non-transactional reads.

func (m *memoryStore) FindByRoomAndDateRange(ctx context.Context, roomID string, from, to scheduler.Date) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindByRoomAndDateRange(ctx, roomID, from, to)
}

func (m *memoryStore) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetReservation(ctx, id)
}

func (m *memoryStore) Save(ctx context.Context, r scheduler.Reservation) (scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Save(ctx, r)
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Delete(ctx, id)
}

func (m *memoryStore) FindFromNow(ctx context.Context, today scheduler.Date, now scheduler.TimeOfDay) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindFromNow(ctx, today, now)
}

func (m *memoryStore) Search(ctx context.Context, filter scheduler.SearchFilter) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Search(ctx, filter)
}

func (m *memoryStore) FindRoomsByOwner(ctx context.Context, ownerName string) ([]scheduler.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindRoomsByOwner(ctx, ownerName)
}

func (m *memoryStore) ListRooms(ctx context.Context) ([]scheduler.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListRooms(ctx)
}

func (m *memoryStore) GetRoom(ctx context.Context, id string) (scheduler.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetRoom(ctx, id)
}

func (m *memoryStore) ListOwners(ctx context.Context) ([]scheduler.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListOwners(ctx)
}

func (m *memoryStore) ListCentres(ctx context.Context) ([]scheduler.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListCentres(ctx)
}

func (m *memoryStore) SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SearchOwners(ctx, text)
}

func (m *memoryStore) GetOwner(ctx context.Context, id string) (scheduler.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetOwner(ctx, id)
}

func (m *memoryStore) ListByTimeRange(ctx context.Context, from, to *time.Time) ([]audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Record
	for _, r := range m.state.records {
		if from != nil && r.At.Before(*from) {
			continue
		}
		if to != nil && !r.At.Before(*to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) ListAll(ctx context.Context) ([]audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Record(nil), m.state.records...), nil
}

// memView is the state seen by one transaction. Callers hold store.mu.
type memView struct {
	st    *memState
	store *memoryStore
}

func (v *memView) Reservations() persistence.ReservationStore { return v }
func (v *memView) Rooms() persistence.RoomInventory           { return v }
func (v *memView) Owners() persistence.OwnerDirectory         { return v }
func (v *memView) Audit() audit.Appender                      { return v }
func (v *memView) Catalog() persistence.CatalogWriter         { return v }

func (v *memView) LockRoom(ctx context.Context, roomID string) error {
	if _, ok := v.st.rooms[roomID]; !ok {
		return persistence.ErrNotFound
	}
	v.store.locked = append(v.store.locked, roomID)
	return nil
}

func (v *memView) FindByRoomAndDateRange(ctx context.Context, roomID string, from, to scheduler.Date) ([]scheduler.Reservation, error) {
	if err := v.store.failOn["find"]; err != nil {
		return nil, err
	}
	var out []scheduler.Reservation
	for _, r := range v.st.reservations {
		d := r.Window.Date()
		if r.RoomID == roomID && !d.Before(from) && !d.After(to) {
			out = append(out, r)
		}
	}
	scheduler.SortReservations(out)
	return out, nil
}

func (v *memView) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	r, ok := v.st.reservations[id]
	if !ok {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}
	return r, nil
}

func (v *memView) Save(ctx context.Context, r scheduler.Reservation) (scheduler.Reservation, error) {
	if err := v.store.failOn["save"]; err != nil {
		return scheduler.Reservation{}, err
	}
	v.st.reservations[r.ID] = r
	return r, nil
}

func (v *memView) Delete(ctx context.Context, id string) error {
	if _, ok := v.st.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(v.st.reservations, id)
	return nil
}

func (v *memView) FindFromNow(ctx context.Context, today scheduler.Date, now scheduler.TimeOfDay) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	for _, r := range v.st.reservations {
		d := r.Window.Date()
		if d.After(today) || (d == today && r.Window.Start() > now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (v *memView) Search(ctx context.Context, filter scheduler.SearchFilter) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	for _, r := range v.st.reservations {
		if !scheduler.WithinRange(r.Window, filter.Range()) {
			continue
		}
		if filter.OwnerName != "" && !strings.EqualFold(v.st.rooms[r.RoomID].OwnerName, filter.OwnerName) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (v *memView) FindRoomsByOwner(ctx context.Context, ownerName string) ([]scheduler.Room, error) {
	var out []scheduler.Room
	for _, room := range v.st.rooms {
		if strings.EqualFold(room.OwnerName, ownerName) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (v *memView) ListRooms(ctx context.Context) ([]scheduler.Room, error) {
	return slicesOf(v.st.rooms), nil
}

func (v *memView) GetRoom(ctx context.Context, id string) (scheduler.Room, error) {
	room, ok := v.st.rooms[id]
	if !ok {
		return scheduler.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (v *memView) ListOwners(ctx context.Context) ([]scheduler.Owner, error) {
	owners := slicesOf(v.st.owners)
	sortOwners(owners)
	return owners, nil
}

func (v *memView) ListCentres(ctx context.Context) ([]scheduler.Owner, error) {
	var out []scheduler.Owner
	for _, o := range v.st.owners {
		if o.IsCentre() {
			out = append(out, o)
		}
	}
	sortOwners(out)
	return out, nil
}

func (v *memView) SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error) {
	var out []scheduler.Owner
	for _, o := range v.st.owners {
		if strings.Contains(strings.ToLower(o.Name), strings.ToLower(text)) {
			out = append(out, o)
		}
	}
	sortOwners(out)
	return out, nil
}

func (v *memView) GetOwner(ctx context.Context, id string) (scheduler.Owner, error) {
	o, ok := v.st.owners[id]
	if !ok {
		return scheduler.Owner{}, persistence.ErrNotFound
	}
	return o, nil
}

func (v *memView) UpsertOwner(ctx context.Context, owner scheduler.Owner) error {
	v.st.owners[owner.ID] = owner
	return nil
}

func (v *memView) UpsertRoom(ctx context.Context, room scheduler.Room) error {
	v.st.rooms[room.ID] = room
	return nil
}

func (v *memView) LastDigest(ctx context.Context, roomID string) (string, error) {
	return v.st.heads[roomID], nil
}

func (v *memView) Append(ctx context.Context, record audit.Record) error {
	if err := v.store.failOn["append"]; err != nil {
		return err
	}
	for _, r := range v.st.records {
		if r.Key.Equal(record.Key) {
			return audit.ErrDuplicateRecord
		}
	}
	v.st.records = append(v.st.records, record)
	v.st.heads[record.Snapshot.RoomID] = record.Digest
	return nil
}

func slicesOf[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func sortOwners(owners []scheduler.Owner) {
	sort.Slice(owners, func(i, j int) bool {
		return strings.ToLower(owners[i].Name) < strings.ToLower(owners[j].Name)
	})
}
