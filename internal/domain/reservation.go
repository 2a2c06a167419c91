package domain

import (
	"strings"
	"time"
)

// Status is the canonical reservation lifecycle state. Historical writers
// stored mixed-case and Spanish variants ("Confirmada", "confirmada"); every
// read and write boundary goes through NormalizeStatus so only these values
// circulate inside the process.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var legacyStatuses = map[string]Status{
	"pendiente":  StatusPending,
	"confirmada": StatusConfirmed,
	"cancelada":  StatusCancelled,
	"completada": StatusCompleted,
	"canceled":   StatusCancelled,
}

// NormalizeStatus maps a raw stored status string to its canonical value.
// Unknown values are returned lowercased so callers can still compare and log them.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := legacyStatuses[s]; ok {
		return canonical
	}
	return Status(s)
}

// Valid reports whether s is one of the canonical lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Reservation struct {
	ReservationID string    `json:"id" dynamodbav:"reservation_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	ComplexID     string    `json:"complex_id" dynamodbav:"complex_id"`
	CourtID       string    `json:"court_id" dynamodbav:"court_id"`
	CourtName     string    `json:"court_name" dynamodbav:"court_name"`
	StartsAt      time.Time `json:"starts_at" dynamodbav:"starts_at"`
	Status        Status    `json:"status" dynamodbav:"status"`

	// Idempotency flags. Once true the corresponding notification must never
	// be sent again for this reservation.
	ReminderSent   bool       `json:"reminder_sent" dynamodbav:"reminder_sent"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty" dynamodbav:"reminder_sent_at,omitempty"`
	ImminentSent   bool       `json:"imminent_sent" dynamodbav:"imminent_sent"`
	ImminentSentAt *time.Time `json:"imminent_sent_at,omitempty" dynamodbav:"imminent_sent_at,omitempty"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
