package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/scheduler"
)

const maxRequestBody = 1 << 20

type reservationService interface {
	Create(ctx context.Context, input application.ReservationInput) (scheduler.Reservation, error)
	Update(ctx context.Context, id string, input application.ReservationInput) (scheduler.Reservation, error)
	Delete(ctx context.Context, id, actorID string) error
	Search(ctx context.Context, filter scheduler.SearchFilter) ([]scheduler.Reservation, error)
	ListUpcoming(ctx context.Context) ([]scheduler.Reservation, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "room_id", req.RoomID, "owner_id", req.OwnerID)
	reservation, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingReservation)
		return
	}

	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "reservation_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "reservation_id", id)
	reservation, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingReservation)
		return
	}
	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))

	logger := h.log(r.Context(), "Delete", "reservation_id", id, "actor_id", actorID)
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		logger.WarnContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := parseSearchFilter(r.URL.Query())
	if err == nil {
		var reservations []scheduler.Reservation
		reservations, err = h.service.Search(r.Context(), filter)
		if err == nil {
			h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationsResponse{Reservations: toReservationDTOs(reservations)})
			return
		}
	}

	h.log(r.Context(), "Search").WarnContext(r.Context(), "reservation search failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

func (h *ReservationHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservations, err := h.service.ListUpcoming(r.Context())
	if err != nil {
		h.log(r.Context(), "Upcoming").ErrorContext(r.Context(), "upcoming reservations failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationsResponse{Reservations: toReservationDTOs(reservations)})
}

type reservationRequest struct {
	RoomID  string `json:"room_id"`
	OwnerID string `json:"owner_id"`
	Date    string `json:"date"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Subject string `json:"subject"`
	ActorID string `json:"actor_id,omitempty"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{
		RoomID:  r.RoomID,
		OwnerID: r.OwnerID,
		Date:    r.Date,
		Start:   r.Start,
		End:     r.End,
		Subject: r.Subject,
		ActorID: r.ActorID,
	}
}

type reservationDTO struct {
	ID      string `json:"id"`
	RoomID  string `json:"room_id"`
	OwnerID string `json:"owner_id"`
	Date    string `json:"date"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Subject string `json:"subject"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type reservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

func toReservationDTO(reservation scheduler.Reservation) reservationDTO {
	return reservationDTO{
		ID:      reservation.ID,
		RoomID:  reservation.RoomID,
		OwnerID: reservation.OwnerID,
		Date:    reservation.Window.Date().String(),
		Start:   reservation.Window.Start().String(),
		End:     reservation.Window.End().String(),
		Subject: reservation.Subject,
	}
}

func toReservationDTOs(reservations []scheduler.Reservation) []reservationDTO {
	dtos := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		dtos = append(dtos, toReservationDTO(reservation))
	}
	return dtos
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
