package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
	jwtinfra "github.com/go-reservas-api/internal/infrastructure/jwt"
	"github.com/go-reservas-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockPrefs struct{ mock.Mock }

func (m *mockPrefs) Get(ctx context.Context, userID string) (*preference.Settings, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*preference.Settings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPrefs) Update(ctx context.Context, userID string, req domain.UpdatePreferencesRequest) (*preference.Settings, error) {
	args := m.Called(ctx, userID, req)
	if s, _ := args.Get(0).(*preference.Settings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPrefs) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	return m.Called(ctx, userID, enabled).Error(0)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, n push.Notification) push.Result {
	return m.Called(ctx, n).Get(0).(push.Result)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUsers) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockDeliveries struct{ mock.Mock }

func (m *mockDeliveries) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.Delivery, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

// --- helpers ---

const goodToken = "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"

func authedRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	claims := &jwtinfra.Claims{UserID: "u1", Role: domain.RoleUser}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

// --- tests ---

func TestRegisterToken_StoresValidToken(t *testing.T) {
	users := &mockUsers{}
	users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["push_token"] == goodToken
	})).Return(nil).Once()
	h := NewNotificationHandler(&mockPrefs{}, &mockSender{}, users, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.RegisterToken(rr, authedRequest(http.MethodPost, "/v1/notifications/token",
		domain.RegisterTokenRequest{PushToken: goodToken}))

	assert.Equal(t, http.StatusOK, rr.Code)
	users.AssertExpectations(t)
}

func TestRegisterToken_RejectsMalformedToken(t *testing.T) {
	users := &mockUsers{}
	h := NewNotificationHandler(&mockPrefs{}, &mockSender{}, users, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.RegisterToken(rr, authedRequest(http.MethodPost, "/v1/notifications/token",
		domain.RegisterTokenRequest{PushToken: "fcm:not-an-expo-token"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterToken_Unauthenticated(t *testing.T) {
	h := NewNotificationHandler(&mockPrefs{}, &mockSender{}, &mockUsers{}, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/token", nil)
	h.RegisterToken(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdatePreferences_PassesThrough(t *testing.T) {
	enabled := true
	prefs := &mockPrefs{}
	prefs.On("Update", mock.Anything, "u1", mock.MatchedBy(func(req domain.UpdatePreferencesRequest) bool {
		return req.Reminders != nil && *req.Reminders
	})).Return(&preference.Settings{NotificationsEnabled: enabled}, nil).Once()
	h := NewNotificationHandler(prefs, &mockSender{}, &mockUsers{}, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.UpdatePreferences(rr, authedRequest(http.MethodPut, "/v1/notifications/preferences",
		map[string]bool{"reminders": true}))

	assert.Equal(t, http.StatusOK, rr.Code)
	prefs.AssertExpectations(t)
}

func TestTestSend_NoTokenRegistered(t *testing.T) {
	users := &mockUsers{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	sender := &mockSender{}
	h := NewNotificationHandler(&mockPrefs{}, sender, users, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.TestSend(rr, authedRequest(http.MethodPost, "/v1/notifications/test",
		domain.TestNotificationRequest{Message: "hola"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestTestSend_ThrottledByTestLimiter(t *testing.T) {
	token := goodToken
	users := &mockUsers{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PushToken: &token}, nil)
	sender := &mockSender{}
	h := NewNotificationHandler(&mockPrefs{}, sender, users, &mockDeliveries{}, denyAll{})

	rr := httptest.NewRecorder()
	h.TestSend(rr, authedRequest(http.MethodPost, "/v1/notifications/test",
		domain.TestNotificationRequest{Message: "hola"}))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestTestSend_Delivers(t *testing.T) {
	token := goodToken
	users := &mockUsers{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PushToken: &token}, nil)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(n push.Notification) bool {
		return n.Token == goodToken && n.Body == "hola" && n.UserID == "u1"
	})).Return(push.Result{Delivered: true}).Once()
	h := NewNotificationHandler(&mockPrefs{}, sender, users, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.TestSend(rr, authedRequest(http.MethodPost, "/v1/notifications/test",
		domain.TestNotificationRequest{Message: "hola"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	sender.AssertExpectations(t)
}

func TestTestSend_ValidationFailureSurfaced(t *testing.T) {
	h := NewNotificationHandler(&mockPrefs{}, &mockSender{}, &mockUsers{}, &mockDeliveries{}, allowAll{})

	rr := httptest.NewRecorder()
	h.TestSend(rr, authedRequest(http.MethodPost, "/v1/notifications/test",
		domain.TestNotificationRequest{Message: ""}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var env MessageEnvelope
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.NotEmpty(t, env.Error)
}

func TestHistory_ListsDeliveries(t *testing.T) {
	deliveries := &mockDeliveries{}
	deliveries.On("ListByUser", mock.Anything, "u1", int32(historyLimit)).
		Return([]domain.Delivery{{DeliveryID: "d1", Status: domain.DeliveryDelivered}}, nil)
	h := NewNotificationHandler(&mockPrefs{}, &mockSender{}, &mockUsers{}, deliveries, allowAll{})

	rr := httptest.NewRecorder()
	h.History(rr, authedRequest(http.MethodGet, "/v1/notifications/history", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got []domain.Delivery
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}
