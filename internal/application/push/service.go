package push

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-reservas-api/internal/domain"
	"github.com/go-reservas-api/internal/infrastructure/expo"
	"github.com/go-reservas-api/internal/pkg/id"
)

// Failure reasons surfaced in Result and recorded in the delivery log.
const (
	ReasonInvalidToken        = "invalid_token"
	ReasonRateLimited         = "rate_limit_exceeded"
	ReasonDeviceNotRegistered = "device_not_registered"
	ReasonDeliveryFailed      = "delivery_failed"
)

const defaultAttempts = 3

// Gateway is the push provider surface the service needs.
type Gateway interface {
	ValidToken(token string) bool
	Send(msg expo.Message) (expo.Ticket, error)
	SendBatch(msgs []expo.Message) []expo.Ticket
}

type tokenStore interface {
	FindByPushToken(ctx context.Context, token string) ([]domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type deliveryStore interface {
	Put(ctx context.Context, d *domain.Delivery) error
}

// Notification is one push addressed to a single device.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string

	// UserID enables rate limiting, token invalidation and the delivery
	// log. Empty disables all three (callers without a resolved user).
	UserID string
	// Topic and ReservationID annotate the delivery log entry.
	Topic         domain.Topic
	ReservationID string
}

// Result is the terminal outcome of a Send.
type Result struct {
	Delivered bool
	Reason    string
	Err       error
}

// Service delivers push notifications with retry, per-recipient rate
// limiting and dead-token invalidation.
type Service struct {
	gateway    Gateway
	users      tokenStore
	deliveries deliveryStore
	limiter    *RateLimiter
	log        *slog.Logger

	attempts    int
	backoffBase time.Duration
}

type ServiceDeps struct {
	Gateway    Gateway
	Users      tokenStore
	Deliveries deliveryStore
	Limiter    *RateLimiter
	Logger     *slog.Logger

	// BackoffBase scales the retry delays (2^attempt * base). Zero means
	// one second; tests shrink it to keep retries fast.
	BackoffBase time.Duration
}

func NewService(deps ServiceDeps) *Service {
	if deps.BackoffBase == 0 {
		deps.BackoffBase = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		gateway:     deps.Gateway,
		users:       deps.Users,
		deliveries:  deps.Deliveries,
		limiter:     deps.Limiter,
		log:         deps.Logger,
		attempts:    defaultAttempts,
		backoffBase: deps.BackoffBase,
	}
}

// Send delivers one notification. Transient gateway failures are retried up
// to three times with exponential backoff; a DeviceNotRegistered verdict
// stops immediately and clears the token from every user that carries it.
// The token is validated before any network call, so malformed tokens never
// reach the gateway.
func (s *Service) Send(ctx context.Context, n Notification) Result {
	if !s.gateway.ValidToken(n.Token) {
		s.log.Warn("push: invalid token, dropping", "user_id", n.UserID)
		return s.fail(ctx, n, ReasonInvalidToken, nil)
	}
	if n.UserID != "" && s.limiter != nil && !s.limiter.Allow(n.UserID) {
		s.log.Info("push: rate limit exceeded", "user_id", n.UserID)
		return s.fail(ctx, n, ReasonRateLimited, nil)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		ticket, err := s.gateway.Send(expo.Message{
			Token: n.Token,
			Title: n.Title,
			Body:  n.Body,
			Data:  n.Data,
		})
		if err == nil {
			if ticket.OK {
				s.record(ctx, n, domain.DeliveryDelivered, "")
				return Result{Delivered: true}
			}
			if ticket.DeviceNotRegistered {
				s.invalidateToken(ctx, n.Token)
				return s.fail(ctx, n, ReasonDeviceNotRegistered, errors.New(ticket.Reason))
			}
			err = errors.New(ticket.Reason)
		}
		lastErr = err
		if attempt == s.attempts {
			break
		}
		delay := time.Duration(1<<attempt) * s.backoffBase
		s.log.Warn("push: send failed, retrying",
			"user_id", n.UserID, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return s.fail(ctx, n, ReasonDeliveryFailed, ctx.Err())
		}
	}
	s.log.Error("push: send failed after retries", "user_id", n.UserID, "error", lastErr)
	return s.fail(ctx, n, ReasonDeliveryFailed, lastErr)
}

// SendBatch delivers many notifications in one pass, for broadcast paths.
// No rate limiting and no retry; invalid tokens are skipped up front and the
// gateway's chunking keeps each call within its message cap. Returns the
// delivered and failed counts.
func (s *Service) SendBatch(ctx context.Context, notifications []Notification) (delivered, failed int) {
	msgs := make([]expo.Message, 0, len(notifications))
	valid := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		if !s.gateway.ValidToken(n.Token) {
			s.record(ctx, n, domain.DeliveryFailed, ReasonInvalidToken)
			failed++
			continue
		}
		msgs = append(msgs, expo.Message{Token: n.Token, Title: n.Title, Body: n.Body, Data: n.Data})
		valid = append(valid, n)
	}
	if len(msgs) == 0 {
		return delivered, failed
	}

	tickets := s.gateway.SendBatch(msgs)
	for i, ticket := range tickets {
		n := valid[i]
		if ticket.OK {
			s.record(ctx, n, domain.DeliveryDelivered, "")
			delivered++
			continue
		}
		failed++
		if ticket.DeviceNotRegistered {
			s.invalidateToken(ctx, n.Token)
			s.record(ctx, n, domain.DeliveryFailed, ReasonDeviceNotRegistered)
			continue
		}
		s.record(ctx, n, domain.DeliveryFailed, ReasonDeliveryFailed)
	}
	return delivered, failed
}

// invalidateToken clears the dead token from every user that carries it, so
// a token shared across re-registered accounts is cleaned everywhere at once.
func (s *Service) invalidateToken(ctx context.Context, token string) {
	if s.users == nil {
		return
	}
	users, err := s.users.FindByPushToken(ctx, token)
	if err != nil {
		s.log.Error("push: token lookup for invalidation failed", "error", err)
		return
	}
	for _, u := range users {
		err := s.users.Update(ctx, u.UserID, map[string]interface{}{
			"push_token":       nil,
			"token_cleaned_at": time.Now().UTC(),
		})
		if err != nil {
			s.log.Error("push: clearing dead token failed", "user_id", u.UserID, "error", err)
			continue
		}
		s.log.Info("push: cleared dead token", "user_id", u.UserID)
	}
}

func (s *Service) fail(ctx context.Context, n Notification, reason string, err error) Result {
	s.record(ctx, n, domain.DeliveryFailed, reason)
	return Result{Reason: reason, Err: err}
}

// record writes a delivery log entry. Best-effort: a failed write is logged
// and otherwise ignored.
func (s *Service) record(ctx context.Context, n Notification, status, reason string) {
	if s.deliveries == nil || n.UserID == "" {
		return
	}
	d := &domain.Delivery{
		DeliveryID:    id.New(),
		UserID:        n.UserID,
		ReservationID: n.ReservationID,
		Topic:         string(n.Topic),
		Title:         n.Title,
		Status:        status,
		Reason:        reason,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.deliveries.Put(ctx, d); err != nil {
		s.log.Warn("push: delivery log write failed", "user_id", n.UserID, "error", err)
	}
}
