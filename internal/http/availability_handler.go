package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/scheduler"
)

type availabilityService interface {
	QueryAvailability(ctx context.Context, filter scheduler.Filter) ([]scheduler.Room, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

// Query answers GET /availability. Malformed parameters answer 400 before the
// engine runs.
func (h *AvailabilityHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := parseAvailabilityFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rooms, err := h.service.QueryAvailability(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *AvailabilityHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handlerLogger(r.Context(), h.logger, "AvailabilityHandler", "Query").
		WarnContext(r.Context(), "availability query failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}
