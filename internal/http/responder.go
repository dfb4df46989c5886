package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/scheduler"
)

var (
	errBadRequestBody     = errors.New("request body is not valid JSON")
	errMissingReservation = errors.New("reservation id is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr        *application.ValidationError
		filterErr   *scheduler.InvalidFilterError
		conflictErr *scheduler.ConflictError
		chainErr    *audit.ChainError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "reservation input is invalid",
			Errors:    vErr.FieldErrors,
		})
	case errors.As(err, &filterErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "INVALID_FILTER",
			Message:   "query filter is invalid",
			Reasons:   filterErr.Reasons,
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "reservation not found",
		})
	case errors.As(err, &conflictErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:   "RESERVATION_CONFLICT",
			Message:     "the room is already booked for part of that window",
			Conflicting: conflictErr.ReservationIDs,
		})
	case errors.Is(err, lock.ErrLockTimeout):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "ROOM_BUSY",
			Message:   "the room is being modified by another request, retry later",
		})
	case errors.As(err, &chainErr):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "LEDGER_CHAIN_BROKEN",
			Message:   chainErr.Error(),
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "INTERNAL",
			Message:   http.StatusText(http.StatusInternalServerError),
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode   string            `json:"error_code,omitempty"`
	Message     string            `json:"message"`
	Errors      map[string]string `json:"errors,omitempty"`
	Reasons     []string          `json:"reasons,omitempty"`
	Conflicting []string          `json:"conflicting_reservation_ids,omitempty"`
}
