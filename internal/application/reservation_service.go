package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/events"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

// MaxSubjectLength bounds the "in charge" label of a reservation.
const MaxSubjectLength = 200

const defaultLockTimeout = 5 * time.Second

// ReservationInput is the raw booking request. Dates are YYYY-MM-DD and times HH:MM.
type ReservationInput struct {
	RoomID  string
	OwnerID string
	Date    string
	Start   string
	End     string
	Subject string
	// ActorID is the owner performing the operation. Create and Update fall
	// back to OwnerID when it is empty.
	ActorID string
}

// ReservationServiceDeps wires a ReservationService.
type ReservationServiceDeps struct {
	Store        persistence.UnitOfWork
	Reservations persistence.ReservationStore
	Ledger       *audit.Ledger
	Locker       lock.Locker
	Publisher    events.Publisher
	IDGenerator  func() string
	Now          func() time.Time
	Location     *time.Location
	LockTimeout  time.Duration
	Logger       *slog.Logger
}

// ReservationService validates, conflict-checks and records reservation
// mutations. Every accepted mutation and its audit record commit together
// while the affected rooms are locked.
type ReservationService struct {
	store        persistence.UnitOfWork
	reservations persistence.ReservationStore
	ledger       *audit.Ledger
	locker       lock.Locker
	publisher    events.Publisher
	idGenerator  func() string
	now          func() time.Time
	loc          *time.Location
	lockTimeout  time.Duration
	logger       *slog.Logger
}

// NewReservationService constructs the service, filling unset collaborators
// with in-process defaults.
func NewReservationService(deps ReservationServiceDeps) *ReservationService {
	svc := &ReservationService{
		store:        deps.Store,
		reservations: deps.Reservations,
		ledger:       deps.Ledger,
		locker:       deps.Locker,
		publisher:    deps.Publisher,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		loc:          deps.Location,
		lockTimeout:  deps.LockTimeout,
		logger:       defaultLogger(deps.Logger),
	}
	if svc.ledger == nil {
		svc.ledger = audit.NewLedger(nil, deps.Location)
	}
	if svc.locker == nil {
		svc.locker = lock.NewMemoryLocker()
	}
	if svc.publisher == nil {
		svc.publisher = events.NopPublisher{}
	}
	if svc.idGenerator == nil {
		svc.idGenerator = uuid.NewString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.loc == nil {
		svc.loc = time.Local
	}
	if svc.lockTimeout <= 0 {
		svc.lockTimeout = defaultLockTimeout
	}
	return svc
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Create validates the input, rejects it when it overlaps another
// reservation of the room and otherwise stores it with a CREATE audit record.
func (s *ReservationService) Create(ctx context.Context, input ReservationInput) (reservation scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Create",
		"room_id", input.RoomID,
		"owner_id", input.OwnerID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create reservation", err)
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	candidate, vErr := parseReservationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.ID = s.idGenerator()
	actorID := firstNonEmpty(input.ActorID, candidate.OwnerID)

	var record audit.Record
	err = s.mutate(ctx, []string{candidate.RoomID}, func(tx persistence.Tx) error {
		room, owner, actor, err := s.resolveReferences(ctx, tx, candidate, actorID)
		if err != nil {
			return err
		}
		if err := s.checkRoom(ctx, tx, candidate, ""); err != nil {
			return err
		}
		saved, err := tx.Reservations().Save(ctx, candidate)
		if err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}
		record, err = s.ledger.Record(ctx, tx.Audit(), saved.ID, audit.OperationCreate, actor, audit.SnapshotOf(saved, room, owner), s.now())
		if err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		reservation = saved
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, record)
	return
}

// ValidateAndSave is Create under the name the booking flow uses.
func (s *ReservationService) ValidateAndSave(ctx context.Context, input ReservationInput) (scheduler.Reservation, error) {
	return s.Create(ctx, input)
}

// Update re-validates the changed reservation against every other
// reservation of its (possibly new) room and records an UPDATE.
func (s *ReservationService) Update(ctx context.Context, id string, input ReservationInput) (reservation scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"reservation_id", id,
		"room_id", input.RoomID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to update reservation", err)
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	candidate, vErr := parseReservationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.ID = id
	actorID := firstNonEmpty(input.ActorID, candidate.OwnerID)

	var current scheduler.Reservation
	current, err = s.reservations.GetReservation(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	var record audit.Record
	err = s.mutate(ctx, []string{current.RoomID, candidate.RoomID}, func(tx persistence.Tx) error {
		latest, err := tx.Reservations().GetReservation(ctx, id)
		if err != nil {
			return mapRepoError(err)
		}
		if latest.RoomID != current.RoomID && latest.RoomID != candidate.RoomID {
			if err := tx.LockRoom(ctx, latest.RoomID); err != nil {
				return fmt.Errorf("lock room %s: %w", latest.RoomID, err)
			}
		}
		room, owner, actor, err := s.resolveReferences(ctx, tx, candidate, actorID)
		if err != nil {
			return err
		}
		if err := s.checkRoom(ctx, tx, candidate, id); err != nil {
			return err
		}
		saved, err := tx.Reservations().Save(ctx, candidate)
		if err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}
		record, err = s.ledger.Record(ctx, tx.Audit(), saved.ID, audit.OperationUpdate, actor, audit.SnapshotOf(saved, room, owner), s.now())
		if err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		reservation = saved
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, record)
	return
}

// Delete removes the reservation and records a DELETE holding a snapshot of
// what was removed.
func (s *ReservationService) Delete(ctx context.Context, id, actorID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "Delete",
		"reservation_id", id,
		"actor_id", actorID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to delete reservation", err)
			return
		}
		logger.InfoContext(ctx, "reservation deleted")
	}()

	if strings.TrimSpace(actorID) == "" {
		return fieldError("actor_id", "actor is required")
	}
	actorID = strings.TrimSpace(actorID)

	current, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}

	var record audit.Record
	err = s.mutate(ctx, []string{current.RoomID}, func(tx persistence.Tx) error {
		latest, err := tx.Reservations().GetReservation(ctx, id)
		if err != nil {
			return mapRepoError(err)
		}
		if latest.RoomID != current.RoomID {
			if err := tx.LockRoom(ctx, latest.RoomID); err != nil {
				return fmt.Errorf("lock room %s: %w", latest.RoomID, err)
			}
		}
		room, owner, actor, err := s.resolveReferences(ctx, tx, latest, actorID)
		if err != nil {
			return err
		}
		if err := tx.Reservations().Delete(ctx, id); err != nil {
			return mapRepoError(err)
		}
		record, err = s.ledger.Record(ctx, tx.Audit(), id, audit.OperationDelete, actor, audit.SnapshotOf(latest, room, owner), s.now())
		if err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, logger, record)
	return nil
}

// Search lists reservations matching filter ordered by date, start, room and id.
func (s *ReservationService) Search(ctx context.Context, filter scheduler.SearchFilter) (reservations []scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Search", "owner_name", filter.OwnerName)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to search reservations", err)
			return
		}
		logger.With("result_count", len(reservations)).InfoContext(ctx, "reservations searched")
	}()

	if err = filter.Validate(); err != nil {
		return
	}
	reservations, err = s.reservations.Search(ctx, filter)
	if err != nil {
		return
	}
	scheduler.SortReservations(reservations)
	return
}

// ListUpcoming returns the reservations starting strictly after now.
func (s *ReservationService) ListUpcoming(ctx context.Context) (reservations []scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUpcoming")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list upcoming reservations", err)
			return
		}
		logger.With("result_count", len(reservations)).InfoContext(ctx, "upcoming reservations listed")
	}()

	now := s.now().In(s.loc)
	reservations, err = s.reservations.FindFromNow(ctx, scheduler.DateOf(now), scheduler.TimeOfDayOf(now))
	if err != nil {
		return
	}
	scheduler.SortReservations(reservations)
	return
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, id string) (scheduler.Reservation, error) {
	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return scheduler.Reservation{}, mapRepoError(err)
	}
	return reservation, nil
}

// mutate locks rooms, then runs fn in one transaction after taking the
// database room locks in ascending id order.
func (s *ReservationService) mutate(ctx context.Context, roomIDs []string, fn func(tx persistence.Tx) error) error {
	ids := slices.DeleteFunc(slices.Clone(roomIDs), func(id string) bool { return id == "" })
	slices.Sort(ids)
	ids = slices.Compact(ids)

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, lock.RoomKey(id))
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := lock.LockAll(lockCtx, s.locker, keys...)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.Atomically(ctx, func(tx persistence.Tx) error {
		for _, id := range ids {
			if err := tx.LockRoom(ctx, id); err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					return fieldError("room_id", "room does not exist")
				}
				return fmt.Errorf("lock room %s: %w", id, err)
			}
		}
		return fn(tx)
	})
}

// resolveReferences loads the room, the reservation owner and the actor.
func (s *ReservationService) resolveReferences(ctx context.Context, tx persistence.Tx, reservation scheduler.Reservation, actorID string) (scheduler.Room, scheduler.Owner, audit.Actor, error) {
	room, err := tx.Rooms().GetRoom(ctx, reservation.RoomID)
	if err != nil {
		return scheduler.Room{}, scheduler.Owner{}, audit.Actor{}, mapReferenceError(err, "room_id", "room does not exist")
	}
	owner, err := tx.Owners().GetOwner(ctx, reservation.OwnerID)
	if err != nil {
		return scheduler.Room{}, scheduler.Owner{}, audit.Actor{}, mapReferenceError(err, "owner_id", "owner does not exist")
	}
	actor := owner
	if actorID != owner.ID {
		actor, err = tx.Owners().GetOwner(ctx, actorID)
		if err != nil {
			return scheduler.Room{}, scheduler.Owner{}, audit.Actor{}, mapReferenceError(err, "actor_id", "actor does not exist")
		}
	}
	return room, owner, audit.Actor{ID: actor.ID, Name: actor.Name}, nil
}

// checkRoom reads the candidate's room for its date and runs the conflict check.
func (s *ReservationService) checkRoom(ctx context.Context, tx persistence.Tx, candidate scheduler.Reservation, excludeID string) error {
	date := candidate.Window.Date()
	existing, err := tx.Reservations().FindByRoomAndDateRange(ctx, candidate.RoomID, date, date)
	if err != nil {
		return fmt.Errorf("read room reservations: %w", err)
	}
	return scheduler.CheckConflict(candidate, existing, excludeID)
}

// publish announces a committed change. Failures are logged only.
func (s *ReservationService) publish(ctx context.Context, logger *slog.Logger, record audit.Record) {
	event := events.FromRecord(uuid.NewString(), record)
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish reservation change",
			"error", err,
			"event_id", event.EventID,
		)
	}
}

func parseReservationInput(input ReservationInput) (scheduler.Reservation, *ValidationError) {
	vErr := &ValidationError{}

	roomID := strings.TrimSpace(input.RoomID)
	if roomID == "" {
		vErr.add("room_id", "room is required")
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		vErr.add("owner_id", "owner is required")
	}

	date, err := scheduler.ParseDate(strings.TrimSpace(input.Date))
	if err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	start, err := scheduler.ParseTimeOfDay(strings.TrimSpace(input.Start))
	if err != nil {
		vErr.add("start", "start must be HH:MM")
	}
	end, err := scheduler.ParseTimeOfDay(strings.TrimSpace(input.End))
	if err != nil {
		vErr.add("end", "end must be HH:MM")
	}

	subject := strings.TrimSpace(input.Subject)
	switch {
	case subject == "":
		vErr.add("subject", "subject is required")
	case utf8.RuneCountInString(subject) > MaxSubjectLength:
		vErr.add("subject", fmt.Sprintf("subject must be at most %d characters", MaxSubjectLength))
	}

	if vErr.HasErrors() {
		return scheduler.Reservation{}, vErr
	}

	window, err := scheduler.NewTimeWindow(date, start, end)
	if err != nil {
		vErr.add("end", "end must be after start")
		return scheduler.Reservation{}, vErr
	}

	return scheduler.Reservation{
		RoomID:  roomID,
		OwnerID: ownerID,
		Window:  window,
		Subject: subject,
	}, vErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
