package testfixtures

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/scheduler"
)

func newScenario(t *testing.T) (*SQLiteHarness, Services, scheduler.Room) {
	t.Helper()

	harness := NewSQLiteHarness(t)
	centre := NewCentreFixture(WithOwnerID("c1"), WithOwnerName("Facultad"))
	deptA := NewDepartmentFixture("c1", WithOwnerID("o1"), WithOwnerName("Dept A"))
	room := NewRoomFixture(deptA, WithRoomID("r1"), WithRoomName("R1"), WithCapacity(30, 20))
	harness.Seed(t, []scheduler.Owner{centre, deptA}, []scheduler.Room{room})

	factory := NewServiceFactory()
	services := factory.NewServices(harness.Store, ServiceDeps{
		Parallelism: 2,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return harness, services, room
}

func availabilityFilter(from, to string) scheduler.Filter {
	date := scheduler.NewDate(2024, time.March, 1)
	start, _ := scheduler.ParseTimeOfDay(from)
	end, _ := scheduler.ParseTimeOfDay(to)
	return scheduler.Filter{DateFrom: &date, TimeFrom: &start, TimeTo: &end, OwnerName: "Dept A"}
}

func TestBookingScenarioOnSQLite(t *testing.T) {
	harness, services, room := newScenario(t)
	ctx := context.Background()

	existing, err := services.Reservations.Create(ctx, application.ReservationInput{
		RoomID: room.ID, OwnerID: "o1", Date: "2024-03-01", Start: "09:00", End: "11:00", Subject: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "res-001", existing.ID)

	rooms, err := services.Availability.QueryAvailability(ctx, availabilityFilter("11:00", "12:00"))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "R1", rooms[0].Name)
	assert.Equal(t, "Dept A", rooms[0].OwnerName)

	rooms, err = services.Availability.QueryAvailability(ctx, availabilityFilter("10:00", "12:00"))
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = services.Reservations.Create(ctx, application.ReservationInput{
		RoomID: room.ID, OwnerID: "o1", Date: "2024-03-01", Start: "10:00", End: "10:30", Subject: "Luis",
	})
	var conflict *scheduler.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{existing.ID}, conflict.ReservationIDs)

	upcoming, err := services.Reservations.ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)

	require.NoError(t, services.Reservations.Delete(ctx, existing.ID, "o1"))

	rooms, err = services.Availability.QueryAvailability(ctx, availabilityFilter("10:00", "12:00"))
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	day := ReferenceDate()
	history, err := services.History.QueryHistory(ctx, &day, &day)
	require.NoError(t, err)
	require.Len(t, history, 2)
	deleted := history[1]
	assert.Equal(t, audit.OperationDelete, deleted.Operation)
	assert.Equal(t, "R1 - Dept A", deleted.Snapshot.Place())
	assert.Equal(t, "09:00", deleted.Snapshot.Start.String())
	assert.Equal(t, "11:00", deleted.Snapshot.End.String())
	assert.Equal(t, "Ana", deleted.Snapshot.Subject)

	assert.Equal(t, 2, harness.AuditCount(t, existing.ID))

	checked, err := services.History.VerifyHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
}

func TestAuditCountMatchesOperationsOnSQLite(t *testing.T) {
	harness, services, room := newScenario(t)
	ctx := context.Background()

	input := application.ReservationInput{RoomID: room.ID, OwnerID: "o1", Date: "2024-03-04", Start: "08:00", End: "09:00", Subject: "Ana"}
	created, err := services.Reservations.Create(ctx, input)
	require.NoError(t, err)

	for _, window := range [][2]string{{"09:00", "10:00"}, {"09:30", "10:30"}, {"12:00", "13:00"}} {
		input.Start, input.End = window[0], window[1]
		_, err := services.Reservations.Update(ctx, created.ID, input)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, harness.AuditCount(t, created.ID))

	before, err := services.History.QueryHistory(ctx, nil, nil)
	require.NoError(t, err)
	after, err := services.History.QueryHistory(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConcurrentBookingsOnSQLite(t *testing.T) {
	_, services, room := newScenario(t)
	ctx := context.Background()

	const attempts = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := services.Reservations.Create(ctx, application.ReservationInput{
				RoomID: room.ID, OwnerID: "o1", Date: "2024-03-05", Start: "09:00", End: "10:00", Subject: "Ana",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, scheduler.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}
