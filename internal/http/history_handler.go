package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/scheduler"
)

type historyService interface {
	QueryHistory(ctx context.Context, from, to *scheduler.Date) ([]audit.Record, error)
	VerifyHistory(ctx context.Context) (int, error)
}

type HistoryHandler struct {
	service   historyService
	responder responder
	logger    *slog.Logger
}

func NewHistoryHandler(service historyService, logger *slog.Logger) *HistoryHandler {
	base := defaultLogger(logger)
	return &HistoryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "HistoryHandler", "List")
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		logger.WarnContext(r.Context(), "invalid history range", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	records, err := h.service.QueryHistory(r.Context(), from, to)
	if err != nil {
		logger.ErrorContext(r.Context(), "history query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]historyRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, toHistoryRecordDTO(record))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{Records: dtos})
}

func (h *HistoryHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	checked, err := h.service.VerifyHistory(r.Context())
	if err != nil {
		handlerLogger(r.Context(), h.logger, "HistoryHandler", "Verify").ErrorContext(r.Context(), "history verification failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, verifyResponse{Checked: checked, Intact: true})
}

// historyRecordDTO flattens a record into the columns of the history listing.
type historyRecordDTO struct {
	ReservationID string `json:"reservation_id"`
	Operation     string `json:"operation"`
	At            string `json:"at"`
	ActorID       string `json:"actor_id"`
	ActorName     string `json:"actor_name"`
	Place         string `json:"place"`
	RoomID        string `json:"room_id"`
	OwnerID       string `json:"owner_id"`
	OwnerName     string `json:"owner_name"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Subject       string `json:"subject"`
	Digest        string `json:"digest"`
}

type historyResponse struct {
	Records []historyRecordDTO `json:"records"`
}

type verifyResponse struct {
	Checked int  `json:"checked"`
	Intact  bool `json:"intact"`
}

func toHistoryRecordDTO(record audit.Record) historyRecordDTO {
	snapshot := record.Snapshot
	return historyRecordDTO{
		ReservationID: record.ReservationID,
		Operation:     string(record.Operation),
		At:            record.At.UTC().Format(time.RFC3339Nano),
		ActorID:       record.Actor.ID,
		ActorName:     record.Actor.Name,
		Place:         snapshot.Place(),
		RoomID:        snapshot.RoomID,
		OwnerID:       snapshot.OwnerID,
		OwnerName:     snapshot.OwnerName,
		Date:          snapshot.Date.String(),
		Start:         snapshot.Start.String(),
		End:           snapshot.End.String(),
		Subject:       snapshot.Subject,
		Digest:        record.Digest,
	}
}
