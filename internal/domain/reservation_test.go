package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"confirmed":   StatusConfirmed,
		"Confirmada":  StatusConfirmed,
		" CONFIRMADA": StatusConfirmed,
		"pendiente":   StatusPending,
		"canceled":    StatusCancelled,
		"cancelada":   StatusCancelled,
		"completada":  StatusCompleted,
		"whatever":    Status("whatever"),
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "raw=%q", raw)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusConfirmed.Valid())
	assert.False(t, Status("confirmada").Valid(), "legacy values must be normalized before use")
}

func TestUserDefaults(t *testing.T) {
	u := &User{}
	assert.True(t, u.NotificationsOn())
	assert.True(t, u.AllowsTopic(TopicReminders))
	assert.False(t, u.HasPushToken())

	off := false
	u.NotificationsEnabled = &off
	assert.False(t, u.NotificationsOn())
}
