package domain

import "time"

const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Topic identifies a notification category a recipient can opt out of.
// The literal values are the preference-map keys the mobile client writes.
type Topic string

const (
	TopicReminders     Topic = "reminders"
	TopicConfirmations Topic = "confirmations"
	TopicWeatherAlerts Topic = "weatherAlerts"
)

// User is the recipient profile as stored in the users table. Auth-related
// fields live in the identity subsystem and are not read here.
type User struct {
	UserID    string `json:"id" dynamodbav:"user_id"`
	Email     string `json:"email" dynamodbav:"email"`
	FirstName string `json:"first_name" dynamodbav:"first_name"`
	LastName  string `json:"last_name" dynamodbav:"last_name"`
	Role      string `json:"role" dynamodbav:"role"`
	// ComplexID is set for facility owners and ties them to their complex.
	ComplexID string `json:"complex_id,omitempty" dynamodbav:"complex_id,omitempty"`

	// PushToken is nil when the user has no registered device. It must match
	// the gateway token grammar to be usable.
	PushToken *string `json:"push_token" dynamodbav:"push_token"`
	// NotificationsEnabled is the global opt-out. Profiles written before the
	// field existed have it absent, which means enabled.
	NotificationsEnabled *bool `json:"notifications_enabled" dynamodbav:"notifications_enabled"`
	// NotificationPreferences maps Topic values to opt-ins. A missing key is
	// permissive.
	NotificationPreferences map[string]bool `json:"notification_preferences" dynamodbav:"notification_preferences"`

	TokenUpdatedAt *time.Time `json:"token_updated_at,omitempty" dynamodbav:"token_updated_at,omitempty"`
	TokenCleanedAt *time.Time `json:"token_cleaned_at,omitempty" dynamodbav:"token_cleaned_at,omitempty"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// NotificationsOn reports the global enabled flag, defaulting to true when unset.
func (u *User) NotificationsOn() bool {
	return u.NotificationsEnabled == nil || *u.NotificationsEnabled
}

// AllowsTopic reports whether the user accepts the given topic. Only an
// explicit false opts out.
func (u *User) AllowsTopic(t Topic) bool {
	v, ok := u.NotificationPreferences[string(t)]
	return !ok || v
}

// HasPushToken reports whether a non-empty token is registered.
func (u *User) HasPushToken() bool {
	return u.PushToken != nil && *u.PushToken != ""
}

// UpdatePreferencesRequest is the payload for the interactive preference endpoint.
type UpdatePreferencesRequest struct {
	Reminders     *bool `json:"reminders"`
	Confirmations *bool `json:"confirmations"`
	WeatherAlerts *bool `json:"weatherAlerts"`
}

// RegisterTokenRequest is the payload for registering a device push token.
type RegisterTokenRequest struct {
	PushToken string `json:"push_token" validate:"required"`
}

// TestNotificationRequest is the payload for the diagnostic send endpoint.
type TestNotificationRequest struct {
	Title   string `json:"title" validate:"omitempty,max=100"`
	Message string `json:"message" validate:"required,min=1,max=200"`
}
