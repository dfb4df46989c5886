package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/logging"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	case errors.Is(err, scheduler.ErrConflict):
		return "conflict"
	case errors.Is(err, scheduler.ErrInvalidFilter):
		return "invalid_filter"
	case errors.Is(err, audit.ErrChainBroken):
		return "chain_broken"
	case errors.Is(err, audit.ErrDuplicateRecord):
		return "duplicate_record"
	case errors.Is(err, lock.ErrLockTimeout):
		return "lock_timeout"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logFailure logs expected business outcomes at warn level and everything
// else at error level.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	switch kind {
	case "not_found", "conflict", "invalid_filter", "validation":
		logger.WarnContext(ctx, msg, "error", err, "error_kind", kind)
	default:
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
	}
}
