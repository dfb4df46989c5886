package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/events"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/persistence/sqlstore"
	"github.com/example/lab-reservations/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with a clock that steps one
// second per reading and "res" identifiers.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewSteppingClock(time.Time{}, time.Second),
		IDGenerator: NewIDGenerator("res"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewSteppingClock(time.Time{}, time.Second)
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("res")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the zone used for "today" and history days.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// ServiceDeps captures the optional collaborators of the services.
type ServiceDeps struct {
	Locker      lock.Locker
	Publisher   events.Publisher
	Parallelism int
	Logger      *slog.Logger
}

// Services bundles every exposed service over one store.
type Services struct {
	Reservations *application.ReservationService
	Availability *application.AvailabilityService
	History      *application.HistoryService
	Directory    *application.DirectoryService
	Ledger       *audit.Ledger
}

// NewServices wires the services over store using the factory defaults.
func (f *ServiceFactory) NewServices(store *sqlstore.Store, deps ServiceDeps) Services {
	ledger := audit.NewLedger(store.Audit(), f.Location)
	engine := scheduler.NewEngine(store.Rooms(), store.Reservations(), f.Clock.TodayFunc(f.Location), deps.Parallelism)

	return Services{
		Reservations: application.NewReservationService(application.ReservationServiceDeps{
			Store:        store,
			Reservations: store.Reservations(),
			Ledger:       ledger,
			Locker:       deps.Locker,
			Publisher:    deps.Publisher,
			IDGenerator:  f.IDGenerator.NextFunc(),
			Now:          f.Clock.NowFunc(),
			Location:     f.Location,
			Logger:       deps.Logger,
		}),
		Availability: application.NewAvailabilityService(engine, deps.Logger),
		History:      application.NewHistoryService(ledger, deps.Logger),
		Directory:    application.NewDirectoryService(store.Owners(), store.Rooms(), deps.Logger),
		Ledger:       ledger,
	}
}
