package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-reservations/internal/application"
	"github.com/example/lab-reservations/internal/scheduler"
)

type directoryService interface {
	ListOwners(ctx context.Context) ([]scheduler.Owner, error)
	ListCentres(ctx context.Context) ([]scheduler.Owner, error)
	SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error)
	ListRooms(ctx context.Context, ownerName string) ([]scheduler.Room, error)
}

// DirectoryHandler serves the owner directory and the room inventory.
type DirectoryHandler struct {
	service   directoryService
	responder responder
	logger    *slog.Logger
}

func NewDirectoryHandler(service directoryService, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	return &DirectoryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DirectoryHandler) Owners(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var (
		owners []scheduler.Owner
		err    error
	)
	if text := strings.TrimSpace(r.URL.Query().Get("q")); text != "" {
		owners, err = h.service.SearchOwners(r.Context(), text)
	} else {
		owners, err = h.service.ListOwners(r.Context())
	}
	h.renderOwners(w, r, "Owners", owners, err)
}

func (h *DirectoryHandler) Centres(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	owners, err := h.service.ListCentres(r.Context())
	h.renderOwners(w, r, "Centres", owners, err)
}

func (h *DirectoryHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rooms, err := h.service.ListRooms(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		handlerLogger(r.Context(), h.logger, "DirectoryHandler", "Rooms").ErrorContext(r.Context(), "room listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *DirectoryHandler) renderOwners(w http.ResponseWriter, r *http.Request, operation string, owners []scheduler.Owner, err error) {
	if err != nil {
		handlerLogger(r.Context(), h.logger, "DirectoryHandler", operation).ErrorContext(r.Context(), "owner listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]ownerDTO, 0, len(owners))
	for _, owner := range owners {
		dtos = append(dtos, ownerDTO{
			ID:       owner.ID,
			Name:     owner.Name,
			Kind:     string(owner.Kind),
			ParentID: owner.ParentID,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, ownersResponse{Owners: dtos})
}

type ownerDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID string `json:"parent_id,omitempty"`
}

type ownersResponse struct {
	Owners []ownerDTO `json:"owners"`
}

type roomDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name"`
	Capacity  int    `json:"capacity"`
	Computers int    `json:"computers"`
}

type roomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

func toRoomDTOs(rooms []scheduler.Room) []roomDTO {
	dtos := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		dtos = append(dtos, roomDTO{
			ID:        room.ID,
			Name:      room.Name,
			OwnerID:   room.OwnerID,
			OwnerName: room.OwnerName,
			Capacity:  room.Capacity,
			Computers: room.Computers,
		})
	}
	return dtos
}
