package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

// AvailabilityService answers free-room queries.
type AvailabilityService struct {
	engine *scheduler.Engine
	logger *slog.Logger
}

// NewAvailabilityService wraps engine.
func NewAvailabilityService(engine *scheduler.Engine, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{engine: engine, logger: defaultLogger(logger)}
}

// QueryAvailability returns the rooms that are free under filter.
func (s *AvailabilityService) QueryAvailability(ctx context.Context, filter scheduler.Filter) (rooms []scheduler.Room, err error) {
	if s == nil || s.engine == nil {
		err = fmt.Errorf("AvailabilityService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "QueryAvailability",
		"owner_name", filter.OwnerName,
		"min_capacity", filter.MinCapacity,
		"min_computers", filter.MinComputers,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to query availability", err)
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "availability queried")
	}()

	rooms, err = s.engine.FindAvailableRooms(ctx, filter)
	return
}

// HistoryService reads and verifies the audit ledger.
type HistoryService struct {
	ledger *audit.Ledger
	logger *slog.Logger
}

// NewHistoryService wraps ledger.
func NewHistoryService(ledger *audit.Ledger, logger *slog.Logger) *HistoryService {
	return &HistoryService{ledger: ledger, logger: defaultLogger(logger)}
}

// QueryHistory returns the records whose operation date lies in [from, to].
func (s *HistoryService) QueryHistory(ctx context.Context, from, to *scheduler.Date) (records []audit.Record, err error) {
	if s == nil || s.ledger == nil {
		err = fmt.Errorf("HistoryService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "HistoryService", "QueryHistory")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to query history", err)
			return
		}
		logger.With("result_count", len(records)).InfoContext(ctx, "history queried")
	}()

	records, err = s.ledger.QueryByDateRange(ctx, from, to)
	return
}

// VerifyHistory recomputes the digest chain and returns how many records it checked.
func (s *HistoryService) VerifyHistory(ctx context.Context) (checked int, err error) {
	if s == nil || s.ledger == nil {
		err = fmt.Errorf("HistoryService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "HistoryService", "VerifyHistory")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "history verification failed", "error", err, "error_kind", ErrorKind(err), "checked", checked)
			return
		}
		logger.With("checked", checked).InfoContext(ctx, "history verified")
	}()

	checked, err = s.ledger.Verify(ctx)
	return
}

// DirectoryService lists owners and rooms.
type DirectoryService struct {
	owners persistence.OwnerDirectory
	rooms  persistence.RoomInventory
	logger *slog.Logger
}

// NewDirectoryService constructs a directory over the given stores.
func NewDirectoryService(owners persistence.OwnerDirectory, rooms persistence.RoomInventory, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{owners: owners, rooms: rooms, logger: defaultLogger(logger)}
}

// ListOwners returns every owner ordered by name.
func (s *DirectoryService) ListOwners(ctx context.Context) ([]scheduler.Owner, error) {
	return s.listOwners(ctx, "ListOwners", func() ([]scheduler.Owner, error) {
		return s.owners.ListOwners(ctx)
	})
}

// ListCentres returns the root owners ordered by name.
func (s *DirectoryService) ListCentres(ctx context.Context) ([]scheduler.Owner, error) {
	return s.listOwners(ctx, "ListCentres", func() ([]scheduler.Owner, error) {
		return s.owners.ListCentres(ctx)
	})
}

// SearchOwners matches text as a case-insensitive substring of owner names.
func (s *DirectoryService) SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error) {
	return s.listOwners(ctx, "SearchOwners", func() ([]scheduler.Owner, error) {
		return s.owners.SearchOwners(ctx, strings.TrimSpace(text))
	})
}

func (s *DirectoryService) listOwners(ctx context.Context, operation string, list func() ([]scheduler.Owner, error)) (owners []scheduler.Owner, err error) {
	if s == nil || s.owners == nil {
		err = fmt.Errorf("DirectoryService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "DirectoryService", operation)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list owners", err)
			return
		}
		logger.With("result_count", len(owners)).InfoContext(ctx, "owners listed")
	}()

	owners, err = list()
	return
}

// ListRooms returns the rooms of ownerName, or every room when ownerName is empty.
func (s *DirectoryService) ListRooms(ctx context.Context, ownerName string) (rooms []scheduler.Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("DirectoryService is not configured")
		return
	}

	ownerName = strings.TrimSpace(ownerName)
	logger := serviceLogger(ctx, s.logger, "DirectoryService", "ListRooms", "owner_name", ownerName)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list rooms", err)
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	if ownerName == "" {
		rooms, err = s.rooms.ListRooms(ctx)
	} else {
		rooms, err = s.rooms.FindRoomsByOwner(ctx, ownerName)
	}
	if err != nil {
		return
	}
	scheduler.SortRooms(rooms)
	return
}
