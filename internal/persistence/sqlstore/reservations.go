package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

const reservationColumns = `r.id, r.room_id, r.owner_id, r.res_date, r.start_sec, r.end_sec, r.subject`

const reservationOrder = ` ORDER BY r.res_date, r.start_sec, r.room_id, r.id`

// ReservationRepository implements persistence.ReservationStore.
type ReservationRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func newReservationRepository(helper *QueryHelper) *ReservationRepository {
	return &ReservationRepository{helper: helper, mapper: NewErrorMapper()}
}

// FindByRoomAndDateRange returns the room's reservations dated in [from, to].
func (r *ReservationRepository) FindByRoomAndDateRange(ctx context.Context, roomID string, from, to scheduler.Date) ([]scheduler.Reservation, error) {
	return r.list(ctx,
		`SELECT `+reservationColumns+` FROM reservations r WHERE r.room_id = ? AND r.res_date >= ? AND r.res_date <= ?`+reservationOrder,
		roomID, from.String(), to.String())
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	if id == "" {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return scheduler.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// Save inserts the reservation or replaces the stored row with the same ID.
func (r *ReservationRepository) Save(ctx context.Context, reservation scheduler.Reservation) (scheduler.Reservation, error) {
	if reservation.ID == "" || reservation.Window.IsZero() {
		return scheduler.Reservation{}, persistence.ErrConstraintViolation
	}

	var n int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE id = ?`, reservation.ID).Scan(&n); err != nil {
		return scheduler.Reservation{}, r.mapper.MapError(err)
	}

	w := reservation.Window
	var err error
	if n > 0 {
		_, err = r.helper.Exec(ctx, `
			UPDATE reservations
			SET room_id = ?, owner_id = ?, res_date = ?, start_sec = ?, end_sec = ?, subject = ?
			WHERE id = ?`,
			reservation.RoomID, reservation.OwnerID, w.Date().String(), int(w.Start()), int(w.End()), reservation.Subject,
			reservation.ID)
	} else {
		_, err = r.helper.Exec(ctx, `
			INSERT INTO reservations (id, room_id, owner_id, res_date, start_sec, end_sec, subject)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reservation.ID, reservation.RoomID, reservation.OwnerID, w.Date().String(), int(w.Start()), int(w.End()),
			reservation.Subject)
	}
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("save reservation %s: %w", reservation.ID, r.mapper.MapError(err))
	}
	return reservation, nil
}

// Delete removes a reservation by ID.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// FindFromNow returns reservations starting strictly after today at now.
func (r *ReservationRepository) FindFromNow(ctx context.Context, today scheduler.Date, now scheduler.TimeOfDay) ([]scheduler.Reservation, error) {
	return r.list(ctx,
		`SELECT `+reservationColumns+` FROM reservations r WHERE r.res_date > ? OR (r.res_date = ? AND r.start_sec > ?)`+reservationOrder,
		today.String(), today.String(), int(now))
}

// Search lists reservations matching the filter. Dates are inclusive and
// the time bounds apply to the reservation's start time. OwnerName matches
// the owner of the reserved room.
func (r *ReservationRepository) Search(ctx context.Context, filter scheduler.SearchFilter) ([]scheduler.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if filter.DateFrom != nil {
		where = append(where, "r.res_date >= ?")
		args = append(args, filter.DateFrom.String())
	}
	if filter.DateTo != nil {
		where = append(where, "r.res_date <= ?")
		args = append(args, filter.DateTo.String())
	}
	if filter.TimeFrom != nil {
		where = append(where, "r.start_sec >= ?")
		args = append(args, int(*filter.TimeFrom))
	}
	if filter.TimeTo != nil {
		where = append(where, "r.start_sec <= ?")
		args = append(args, int(*filter.TimeTo))
	}
	if name := strings.TrimSpace(filter.OwnerName); name != "" {
		where = append(where, "o.name_key = ?")
		args = append(args, nameKey(name))
	}

	query := `SELECT ` + reservationColumns + `
		FROM reservations r
		JOIN rooms m ON m.id = r.room_id
		JOIN owners o ON o.id = m.owner_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return r.list(ctx, query+reservationOrder, args...)
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]scheduler.Reservation, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	reservations := []scheduler.Reservation{}
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

func scanReservation(s scanner) (scheduler.Reservation, error) {
	var (
		reservation scheduler.Reservation
		date        string
		start, end  int
	)
	if err := s.Scan(&reservation.ID, &reservation.RoomID, &reservation.OwnerID, &date, &start, &end, &reservation.Subject); err != nil {
		return scheduler.Reservation{}, err
	}
	day, err := scheduler.ParseDate(date)
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("reservation %s: %w", reservation.ID, err)
	}
	reservation.Window, err = scheduler.NewTimeWindow(day, scheduler.TimeOfDay(start), scheduler.TimeOfDay(end))
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("reservation %s: %w", reservation.ID, err)
	}
	return reservation, nil
}
