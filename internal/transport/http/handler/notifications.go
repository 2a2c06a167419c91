package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
	"github.com/go-reservas-api/internal/infrastructure/expo"
	"github.com/go-reservas-api/internal/pkg/validate"
	"github.com/go-reservas-api/internal/transport/http/middleware"
)

const historyLimit = 50

type preferenceService interface {
	Get(ctx context.Context, userID string) (*preference.Settings, error)
	Update(ctx context.Context, userID string, req domain.UpdatePreferencesRequest) (*preference.Settings, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
}

type pushSender interface {
	Send(ctx context.Context, n push.Notification) push.Result
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type deliveryLister interface {
	ListByUser(ctx context.Context, userID string, limit int32) ([]domain.Delivery, error)
}

type testThrottle interface {
	Allow(recipientID string) bool
}

// NotificationHandler serves the per-user notification surface: token
// registration, topic preferences, delivery history and the diagnostic
// test send.
type NotificationHandler struct {
	prefs       preferenceService
	sender      pushSender
	users       userStore
	deliveries  deliveryLister
	testLimiter testThrottle
}

func NewNotificationHandler(prefs preferenceService, sender pushSender, users userStore, deliveries deliveryLister, testLimiter testThrottle) *NotificationHandler {
	return &NotificationHandler{
		prefs:       prefs,
		sender:      sender,
		users:       users,
		deliveries:  deliveries,
		testLimiter: testLimiter,
	}
}

func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !expo.IsPushToken(req.PushToken) {
		writeError(w, http.StatusBadRequest, "push token does not match the expected format")
		return
	}
	err := h.users.Update(r.Context(), claims.UserID, map[string]interface{}{
		"push_token":       req.PushToken,
		"token_updated_at": time.Now().UTC(),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "push token registered"})
}

func (h *NotificationHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	err := h.users.Update(r.Context(), claims.UserID, map[string]interface{}{
		"push_token":       nil,
		"token_cleaned_at": time.Now().UTC(),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "push token removed"})
}

func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := h.prefs.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings, err := h.prefs.Update(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *NotificationHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *NotificationHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *NotificationHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.prefs.SetEnabled(r.Context(), claims.UserID, enabled); err != nil {
		httpError(w, err)
		return
	}
	msg := "notifications enabled"
	if !enabled {
		msg = "notifications disabled"
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

func (h *NotificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := h.prefs.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	deliveries, err := h.deliveries.ListByUser(r.Context(), claims.UserID, historyLimit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

// TestSend pushes a throwaway notification to the caller's own device. It
// bypasses topic preferences (the user explicitly asked for it) but keeps
// the harsher test throttle and the per-send rate limit.
func (h *NotificationHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.TestNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	if !u.HasPushToken() {
		writeError(w, http.StatusBadRequest, "no push token registered")
		return
	}
	if !h.testLimiter.Allow(claims.UserID) {
		writeError(w, http.StatusTooManyRequests, "test send limit reached, try again later")
		return
	}

	title := req.Title
	if title == "" {
		title = "Notificación de prueba"
	}
	result := h.sender.Send(r.Context(), push.Notification{
		Token:  *u.PushToken,
		Title:  title,
		Body:   req.Message,
		Data:   map[string]string{"type": "test"},
		UserID: claims.UserID,
		Topic:  domain.Topic("test"),
	})
	if !result.Delivered {
		status := http.StatusBadGateway
		if result.Reason == push.ReasonRateLimited {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, result.Reason)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "test notification sent"})
}
