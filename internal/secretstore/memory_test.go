package secretstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "otp:9876543210", "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := s.Get(ctx, "otp:9876543210")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "payload" {
		t.Fatalf("expected payload, got %q", val)
	}

	if err := s.Delete(ctx, "otp:9876543210"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "otp:9876543210"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_ExpiryIsAuthoritativeOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Already expired; the janitor has not run, the read still misses.
	if err := s.Set(ctx, "key", "value", -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.Get(ctx, "key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired key, got %v", err)
	}
}

func TestMemoryStore_OverwriteExtendsLifetime(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "key", "old", -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "key", "new", time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	val, err := s.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "new" {
		t.Fatalf("expected new value, got %q", val)
	}
}

func TestMemoryStore_MissingKey(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("deleting an absent key must succeed: %v", err)
	}
}
