package customer

import (
	"context"
	"errors"
	"testing"
)

type stubCounter struct {
	owned int
}

func (s *stubCounter) CountByCustomer(context.Context, string) (int, error) {
	return s.owned, nil
}

func TestCreateRequiresDisplayName(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &stubCounter{})

	if _, err := svc.Create(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank display name")
	}

	cust, err := svc.Create(context.Background(), "  Maria Santos  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cust.DisplayName != "Maria Santos" {
		t.Fatalf("display name not trimmed: %q", cust.DisplayName)
	}
	if cust.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestDeleteBlockedWhileAccountsExist(t *testing.T) {
	counter := &stubCounter{owned: 2}
	svc := NewService(NewMemoryRepository(), counter)
	ctx := context.Background()

	cust, err := svc.Create(ctx, "Maria Santos")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, cust.ID); !errors.Is(err, ErrHasAccounts) {
		t.Fatalf("expected ErrHasAccounts, got %v", err)
	}
	if _, err := svc.Get(ctx, cust.ID); err != nil {
		t.Fatalf("customer should survive blocked delete: %v", err)
	}

	counter.owned = 0
	if err := svc.Delete(ctx, cust.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, cust.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteUnknownCustomer(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &stubCounter{})
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
