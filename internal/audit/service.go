package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for trail events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records the call lifecycle trail.
//
// IMPORTANT:
// - The trail is internal-only ops material.
// - Callers should treat it as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallSid == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallInitiated records an outbound dial.
func (s *Service) LogCallInitiated(ctx context.Context, callSid string, orderID int64, kind string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallInitiated,
		CallSid: callSid,
		OrderID: orderID,
		Message: "outbound call placed: " + kind,
	})
}

// LogCallback records one inbound flow callback.
func (s *Service) LogCallback(ctx context.Context, callSid string, orderID int64, digits string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallback,
		CallSid: callSid,
		OrderID: orderID,
		Digits:  digits,
	})
}

// LogDigits records one DTMF entry.
func (s *Service) LogDigits(ctx context.Context, callSid string, orderID int64, digits string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeDigits,
		CallSid: callSid,
		OrderID: orderID,
		Digits:  digits,
	})
}

// LogTerminalStep records a call closing with its outcome.
func (s *Service) LogTerminalStep(ctx context.Context, callSid string, orderID int64, outcome string, metadata string) error {
	return s.Append(ctx, Event{
		Type:     EventTypeTerminalStep,
		CallSid:  callSid,
		OrderID:  orderID,
		Message:  "call closed: " + outcome,
		Metadata: metadata,
	})
}

// LogStatus records the provider's end-of-call report.
func (s *Service) LogStatus(ctx context.Context, callSid, callStatus string, durationSeconds int) error {
	return s.Append(ctx, Event{
		Type:     EventTypeStatus,
		CallSid:  callSid,
		Message:  callStatus,
		Metadata: fmt.Sprintf(`{"duration_seconds":%d}`, durationSeconds),
	})
}
