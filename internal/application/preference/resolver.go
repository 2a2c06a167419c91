package preference

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-reservas-api/internal/domain"
)

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Decision is the resolver's verdict for one recipient and topic.
type Decision struct {
	Allowed bool
	// Token is the recipient's push token when Allowed is true.
	Token string
	// Reason explains a denial: "user_not_found", "lookup_failed",
	// "notifications_disabled", "topic_opted_out", "no_push_token".
	Reason string
}

// Settings is the preference snapshot served by the interactive endpoints.
type Settings struct {
	NotificationsEnabled bool            `json:"notifications_enabled"`
	Preferences          map[string]bool `json:"notification_preferences"`
	HasPushToken         bool            `json:"has_push_token"`
}

// Resolver answers "may this user be notified about this topic" by combining
// the global enabled flag, the per-topic opt-outs and token presence. It
// fails closed: any lookup problem denies the send.
type Resolver struct {
	users userStore
	log   *slog.Logger
}

func NewResolver(users userStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{users: users, log: log}
}

// CanReceive resolves the user's profile and checks, in order: profile
// exists, global flag on, topic not opted out, push token registered.
func (r *Resolver) CanReceive(ctx context.Context, userID string, topic domain.Topic) Decision {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Decision{Reason: "user_not_found"}
		}
		r.log.Error("preference: user lookup failed", "user_id", userID, "error", err)
		return Decision{Reason: "lookup_failed"}
	}
	return r.decide(u, topic)
}

// Decide applies the same checks to an already-loaded profile, for callers
// that batch-load recipients.
func (r *Resolver) Decide(u *domain.User, topic domain.Topic) Decision {
	return r.decide(u, topic)
}

func (r *Resolver) decide(u *domain.User, topic domain.Topic) Decision {
	if !u.NotificationsOn() {
		return Decision{Reason: "notifications_disabled"}
	}
	if !u.AllowsTopic(topic) {
		return Decision{Reason: "topic_opted_out"}
	}
	if !u.HasPushToken() {
		return Decision{Reason: "no_push_token"}
	}
	return Decision{Allowed: true, Token: *u.PushToken}
}

// Get returns the user's current preference snapshot with defaults applied,
// so clients never see an absent map.
func (r *Resolver) Get(ctx context.Context, userID string) (*Settings, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(u), nil
}

// Update merges the provided per-topic flags into the stored preference map.
// Absent fields are left untouched.
func (r *Resolver) Update(ctx context.Context, userID string, req domain.UpdatePreferencesRequest) (*Settings, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs := u.NotificationPreferences
	if prefs == nil {
		prefs = map[string]bool{}
	}
	apply := func(t domain.Topic, v *bool) {
		if v != nil {
			prefs[string(t)] = *v
		}
	}
	apply(domain.TopicReminders, req.Reminders)
	apply(domain.TopicConfirmations, req.Confirmations)
	apply(domain.TopicWeatherAlerts, req.WeatherAlerts)

	err = r.users.Update(ctx, userID, map[string]interface{}{
		"notification_preferences": prefs,
	})
	if err != nil {
		return nil, err
	}
	u.NotificationPreferences = prefs
	return r.snapshot(u), nil
}

// SetEnabled flips the global notifications flag.
func (r *Resolver) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	return r.users.Update(ctx, userID, map[string]interface{}{
		"notifications_enabled": enabled,
	})
}

func (r *Resolver) snapshot(u *domain.User) *Settings {
	return &Settings{
		NotificationsEnabled: u.NotificationsOn(),
		Preferences: map[string]bool{
			string(domain.TopicReminders):     u.AllowsTopic(domain.TopicReminders),
			string(domain.TopicConfirmations): u.AllowsTopic(domain.TopicConfirmations),
			string(domain.TopicWeatherAlerts): u.AllowsTopic(domain.TopicWeatherAlerts),
		},
		HasPushToken: u.HasPushToken(),
	}
}
