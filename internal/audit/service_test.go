package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresCallSidAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeDigits}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CallSid: "CA1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCallback(context.Background(), "CA1", 42, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogDigits(context.Background(), "CA1", 42, "1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogTerminalStep(context.Background(), "CA1", 42, "accepted", `{"prep":30}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeCallback || evs[0].OrderID != 42 {
		t.Fatalf("callback event mangled: %+v", evs[0])
	}
	if evs[1].Type != EventTypeDigits || evs[1].Digits != "1" {
		t.Fatalf("digit event mangled: %+v", evs[1])
	}
	if evs[2].Type != EventTypeTerminalStep || evs[2].OrderID != 42 {
		t.Fatalf("terminal event mangled: %+v", evs[2])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("event not stamped: %+v", evs[0])
	}
}
