package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-reservas-api/internal/application/engine"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
	"github.com/go-reservas-api/internal/pkg/validate"
)

type engineService interface {
	RunJobManually(ctx context.Context, name string) error
	Stats() engine.Stats
}

type batchSender interface {
	SendBatch(ctx context.Context, notifications []push.Notification) (delivered, failed int)
}

type ownerFinder interface {
	QueryByRoleAndComplex(ctx context.Context, role, complexID string) ([]domain.User, error)
}

// EngineHandler serves the admin surface: manual job runs, engine stats and
// the per-complex owner broadcast.
type EngineHandler struct {
	engine engineService
	sender batchSender
	users  ownerFinder
}

func NewEngineHandler(eng engineService, sender batchSender, users ownerFinder) *EngineHandler {
	return &EngineHandler{engine: eng, sender: sender, users: users}
}

func (h *EngineHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.engine.RunJobManually(r.Context(), name); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "job " + name + " executed"})
}

func (h *EngineHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// BroadcastRequest is the payload for the owner broadcast endpoint.
type BroadcastRequest struct {
	Title   string `json:"title" validate:"required,max=100"`
	Message string `json:"message" validate:"required,min=1,max=500"`
}

// Broadcast pushes an announcement to every owner of the given complex that
// has a usable token and notifications on.
func (h *EngineHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	complexID := chi.URLParam(r, "complexID")

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owners, err := h.users.QueryByRoleAndComplex(r.Context(), domain.RoleOwner, complexID)
	if err != nil {
		httpError(w, err)
		return
	}

	notifications := make([]push.Notification, 0, len(owners))
	for _, u := range owners {
		if !u.HasPushToken() || !u.NotificationsOn() {
			continue
		}
		notifications = append(notifications, push.Notification{
			Token:  *u.PushToken,
			Title:  req.Title,
			Body:   req.Message,
			Data:   map[string]string{"type": "broadcast", "complexId": complexID},
			UserID: u.UserID,
			Topic:  domain.Topic("broadcast"),
		})
	}

	delivered, failed := h.sender.SendBatch(r.Context(), notifications)
	writeJSON(w, http.StatusOK, BroadcastEnvelope{
		Recipients: len(notifications),
		Delivered:  delivered,
		Failed:     failed,
	})
}
