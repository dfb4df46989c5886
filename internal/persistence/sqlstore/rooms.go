package sqlstore

import (
	"context"
	"fmt"

	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

const roomSelect = `
	SELECT m.id, m.name, m.owner_id, o.name, m.capacity, m.computers
	FROM rooms m
	JOIN owners o ON o.id = m.owner_id
`

// RoomRepository implements persistence.RoomInventory.
type RoomRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func newRoomRepository(helper *QueryHelper) *RoomRepository {
	return &RoomRepository{helper: helper, mapper: NewErrorMapper()}
}

// FindRoomsByOwner returns the rooms whose owner name equals ownerName, ignoring case.
func (r *RoomRepository) FindRoomsByOwner(ctx context.Context, ownerName string) ([]scheduler.Room, error) {
	return r.list(ctx, roomSelect+`WHERE o.name_key = ? ORDER BY LOWER(m.name), m.id`, nameKey(ownerName))
}

// ListRooms returns all rooms ordered by name then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]scheduler.Room, error) {
	return r.list(ctx, roomSelect+`ORDER BY LOWER(m.name), m.id`)
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (scheduler.Room, error) {
	if id == "" {
		return scheduler.Room{}, persistence.ErrNotFound
	}
	room, err := scanRoom(r.helper.QueryRow(ctx, roomSelect+`WHERE m.id = ?`, id))
	if err != nil {
		return scheduler.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// UpsertRoom inserts the room or overwrites the stored one with the same id.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room scheduler.Room) error {
	if room.ID == "" || room.Capacity < 0 || room.Computers < 0 {
		return persistence.ErrConstraintViolation
	}

	var n int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, room.ID).Scan(&n); err != nil {
		return r.mapper.MapError(err)
	}

	var err error
	if n > 0 {
		_, err = r.helper.Exec(ctx, `UPDATE rooms SET name = ?, owner_id = ?, capacity = ?, computers = ? WHERE id = ?`,
			room.Name, room.OwnerID, room.Capacity, room.Computers, room.ID)
	} else {
		_, err = r.helper.Exec(ctx, `INSERT INTO rooms (id, name, owner_id, capacity, computers) VALUES (?, ?, ?, ?, ?)`,
			room.ID, room.Name, room.OwnerID, room.Capacity, room.Computers)
	}
	if err != nil {
		return fmt.Errorf("upsert room %s: %w", room.ID, r.mapper.MapError(err))
	}
	return nil
}

func (r *RoomRepository) list(ctx context.Context, query string, args ...any) ([]scheduler.Room, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := []scheduler.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

func scanRoom(s scanner) (scheduler.Room, error) {
	var room scheduler.Room
	err := s.Scan(&room.ID, &room.Name, &room.OwnerID, &room.OwnerName, &room.Capacity, &room.Computers)
	return room, err
}
