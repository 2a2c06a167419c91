package preference

import (
	"context"
	"errors"
	"testing"

	"github.com/go-reservas-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

func ptr[T any](v T) *T { return &v }

func reachableUser() *domain.User {
	return &domain.User{
		UserID:    "user-1",
		PushToken: ptr("ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"),
	}
}

func TestCanReceive_DefaultsArePermissive(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(reachableUser(), nil)

	r := NewResolver(us, nil)
	d := r.CanReceive(context.Background(), "user-1", domain.TopicReminders)

	assert.True(t, d.Allowed)
	assert.Equal(t, "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]", d.Token)
}

func TestCanReceive_GlobalDisableWinsOverTopicOptIn(t *testing.T) {
	u := reachableUser()
	u.NotificationsEnabled = ptr(false)
	u.NotificationPreferences = map[string]bool{"reminders": true}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(u, nil)

	r := NewResolver(us, nil)
	d := r.CanReceive(context.Background(), "user-1", domain.TopicReminders)

	assert.False(t, d.Allowed)
	assert.Equal(t, "notifications_disabled", d.Reason)
}

func TestCanReceive_TopicOptOut(t *testing.T) {
	u := reachableUser()
	u.NotificationPreferences = map[string]bool{"weatherAlerts": false}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(u, nil)

	r := NewResolver(us, nil)

	assert.False(t, r.CanReceive(context.Background(), "user-1", domain.TopicWeatherAlerts).Allowed)
	// Other topics stay unaffected.
	assert.True(t, r.CanReceive(context.Background(), "user-1", domain.TopicReminders).Allowed)
}

func TestCanReceive_NoToken(t *testing.T) {
	u := reachableUser()
	u.PushToken = nil
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(u, nil)

	r := NewResolver(us, nil)
	d := r.CanReceive(context.Background(), "user-1", domain.TopicConfirmations)

	assert.False(t, d.Allowed)
	assert.Equal(t, "no_push_token", d.Reason)
}

func TestCanReceive_FailsClosed(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	us.On("Get", mock.Anything, "broken").Return(nil, errors.New("throttled"))

	r := NewResolver(us, nil)

	assert.Equal(t, "user_not_found", r.CanReceive(context.Background(), "missing", domain.TopicReminders).Reason)
	assert.Equal(t, "lookup_failed", r.CanReceive(context.Background(), "broken", domain.TopicReminders).Reason)
}

func TestUpdate_MergesOnlyProvidedFields(t *testing.T) {
	u := reachableUser()
	u.NotificationPreferences = map[string]bool{"reminders": false, "confirmations": true}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(u, nil)
	us.On("Update", mock.Anything, "user-1", mock.MatchedBy(func(updates map[string]interface{}) bool {
		prefs := updates["notification_preferences"].(map[string]bool)
		return prefs["reminders"] == true && prefs["confirmations"] == true
	})).Return(nil).Once()

	r := NewResolver(us, nil)
	settings, err := r.Update(context.Background(), "user-1", domain.UpdatePreferencesRequest{
		Reminders: ptr(true),
	})

	require.NoError(t, err)
	assert.True(t, settings.Preferences["reminders"])
	assert.True(t, settings.Preferences["confirmations"], "absent field must not be touched")
	us.AssertExpectations(t)
}

func TestGet_ReturnsDefaultsForEmptyProfile(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "user-1").Return(&domain.User{UserID: "user-1"}, nil)

	r := NewResolver(us, nil)
	settings, err := r.Get(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, settings.NotificationsEnabled)
	assert.True(t, settings.Preferences["reminders"])
	assert.True(t, settings.Preferences["confirmations"])
	assert.True(t, settings.Preferences["weatherAlerts"])
	assert.False(t, settings.HasPushToken)
}
