package services

import (
	"context"
	"testing"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

func newPaidAccess(t *testing.T) *PaidAccessService {
	t.Helper()
	return NewPaidAccessService(newServicesDB(t, &domain.PaidAccess{}))
}

func TestActivate_FullLifecycle(t *testing.T) {
	svc := newPaidAccess(t)
	ctx := context.Background()

	if _, err := svc.CreatePending(ctx, "code-1", 4990, "basic"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Pending codes cannot be activated.
	if err := svc.Activate(ctx, "code-1", "chat-A"); err != ErrCodeNotPaid {
		t.Fatalf("expected ErrCodeNotPaid, got %v", err)
	}

	if err := svc.MarkPaid(ctx, "code-1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	paid, err := svc.IsPaid(ctx, "code-1")
	if err != nil || !paid {
		t.Fatalf("IsPaid: %v %v", paid, err)
	}

	// First claim wins.
	if err := svc.Activate(ctx, "code-1", "chat-A"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// A repeat /start from the owner is still a success.
	if err := svc.Activate(ctx, "code-1", "chat-A"); err != nil {
		t.Fatalf("repeat claim by owner: %v", err)
	}
	// A different chat is rejected without state changes.
	if err := svc.Activate(ctx, "code-1", "chat-B"); err != ErrCodeClaimed {
		t.Fatalf("expected ErrCodeClaimed, got %v", err)
	}

	has, err := svc.HasAccess(ctx, "chat-A")
	if err != nil || !has {
		t.Fatalf("owner should hold access: %v %v", has, err)
	}
	has, err = svc.HasAccess(ctx, "chat-B")
	if err != nil || has {
		t.Fatalf("loser should not hold access: %v %v", has, err)
	}
}

func TestActivate_UnknownCode(t *testing.T) {
	svc := newPaidAccess(t)
	if err := svc.Activate(context.Background(), "ghost", "chat-A"); err != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestGetPayment_MapsNotFound(t *testing.T) {
	svc := newPaidAccess(t)
	if _, err := svc.GetPayment(context.Background(), "ghost"); err != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestIsPaid_UnknownCodeIsFalse(t *testing.T) {
	svc := newPaidAccess(t)
	paid, err := svc.IsPaid(context.Background(), "ghost")
	if err != nil || paid {
		t.Fatalf("unknown code should read unpaid: %v %v", paid, err)
	}
}
