package session

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGetClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Minute)

	p, err := m.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != None {
		t.Fatalf("fresh store Get = %q, want None", p)
	}

	if err := m.Set(ctx, 1, CheckIn); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p, _ = m.Get(ctx, 1); p != CheckIn {
		t.Fatalf("Get = %q, want %q", p, CheckIn)
	}

	// Users do not share state.
	if p, _ = m.Get(ctx, 2); p != None {
		t.Fatalf("other user Get = %q, want None", p)
	}

	if err := m.Set(ctx, 1, CheckOut); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p, _ = m.Get(ctx, 1); p != CheckOut {
		t.Fatalf("overwrite Get = %q, want %q", p, CheckOut)
	}

	if err := m.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if p, _ = m.Get(ctx, 1); p != None {
		t.Fatalf("Get after Clear = %q, want None", p)
	}
}

func TestMemorySetNoneClears(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Minute)

	if err := m.Set(ctx, 1, CheckIn); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set(ctx, 1, None); err != nil {
		t.Fatalf("Set(None): %v", err)
	}
	if p, _ := m.Get(ctx, 1); p != None {
		t.Fatalf("Get = %q, want None", p)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Minute)

	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, 1, CheckIn); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(5 * time.Minute)
	if p, _ := m.Get(ctx, 1); p != CheckIn {
		t.Fatalf("Get at TTL boundary = %q, want %q", p, CheckIn)
	}

	now = now.Add(time.Second)
	if p, _ := m.Get(ctx, 1); p != None {
		t.Fatalf("Get past TTL = %q, want None", p)
	}
}

func TestNewMemoryDefaultTTL(t *testing.T) {
	m := NewMemory(0)
	if m.ttl != 5*time.Minute {
		t.Fatalf("default ttl = %v, want 5m", m.ttl)
	}
}
