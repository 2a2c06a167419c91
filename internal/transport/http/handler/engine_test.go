package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-reservas-api/internal/application/engine"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockEngine struct{ mock.Mock }

func (m *mockEngine) RunJobManually(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}
func (m *mockEngine) Stats() engine.Stats {
	return m.Called().Get(0).(engine.Stats)
}

type mockBatchSender struct{ mock.Mock }

func (m *mockBatchSender) SendBatch(ctx context.Context, notifications []push.Notification) (int, int) {
	args := m.Called(ctx, notifications)
	return args.Int(0), args.Int(1)
}

type mockOwnerFinder struct{ mock.Mock }

func (m *mockOwnerFinder) QueryByRoleAndComplex(ctx context.Context, role, complexID string) ([]domain.User, error) {
	args := m.Called(ctx, role, complexID)
	return args.Get(0).([]domain.User), args.Error(1)
}

// routeRequest sends the request through a chi router so URL params resolve.
func routeRequest(t *testing.T, method, pattern, target string, body interface{}, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, fn)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, &buf))
	return rr
}

func TestRunJob_OK(t *testing.T) {
	eng := &mockEngine{}
	eng.On("RunJobManually", mock.Anything, "weather").Return(nil).Once()
	h := NewEngineHandler(eng, &mockBatchSender{}, &mockOwnerFinder{})

	rr := routeRequest(t, http.MethodPost, "/engine/jobs/{name}", "/engine/jobs/weather", nil, h.RunJob)

	assert.Equal(t, http.StatusOK, rr.Code)
	eng.AssertExpectations(t)
}

func TestRunJob_UnknownJobIs404(t *testing.T) {
	eng := &mockEngine{}
	eng.On("RunJobManually", mock.Anything, "defrag").Return(domain.ErrNotFound)
	h := NewEngineHandler(eng, &mockBatchSender{}, &mockOwnerFinder{})

	rr := routeRequest(t, http.MethodPost, "/engine/jobs/{name}", "/engine/jobs/defrag", nil, h.RunJob)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunJob_AlreadyRunningIs409(t *testing.T) {
	eng := &mockEngine{}
	eng.On("RunJobManually", mock.Anything, "reminders").Return(domain.ErrConflict)
	h := NewEngineHandler(eng, &mockBatchSender{}, &mockOwnerFinder{})

	rr := routeRequest(t, http.MethodPost, "/engine/jobs/{name}", "/engine/jobs/reminders", nil, h.RunJob)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStats(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Stats").Return(engine.Stats{Enabled: true, Timezone: "UTC"})
	h := NewEngineHandler(eng, &mockBatchSender{}, &mockOwnerFinder{})

	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/engine/stats", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got engine.Stats
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.True(t, got.Enabled)
}

func TestBroadcast_SkipsUnreachableOwners(t *testing.T) {
	token := goodToken
	off := false
	finder := &mockOwnerFinder{}
	finder.On("QueryByRoleAndComplex", mock.Anything, domain.RoleOwner, "cx-1").
		Return([]domain.User{
			{UserID: "o1", PushToken: &token},
			{UserID: "o2"},                                              // no token
			{UserID: "o3", PushToken: &token, NotificationsEnabled: &off}, // opted out
		}, nil)

	sender := &mockBatchSender{}
	sender.On("SendBatch", mock.Anything, mock.MatchedBy(func(ns []push.Notification) bool {
		return len(ns) == 1 && ns[0].UserID == "o1"
	})).Return(1, 0).Once()

	h := NewEngineHandler(&mockEngine{}, sender, finder)
	rr := routeRequest(t, http.MethodPost, "/notifications/broadcast/{complexID}", "/notifications/broadcast/cx-1",
		BroadcastRequest{Title: "Cierre por lluvia", Message: "El complejo cierra hoy a las 18"}, h.Broadcast)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env BroadcastEnvelope
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, 1, env.Recipients)
	assert.Equal(t, 1, env.Delivered)
	sender.AssertExpectations(t)
}

func TestBroadcast_ValidationFailure(t *testing.T) {
	h := NewEngineHandler(&mockEngine{}, &mockBatchSender{}, &mockOwnerFinder{})

	rr := routeRequest(t, http.MethodPost, "/notifications/broadcast/{complexID}", "/notifications/broadcast/cx-1",
		BroadcastRequest{Title: "", Message: ""}, h.Broadcast)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
