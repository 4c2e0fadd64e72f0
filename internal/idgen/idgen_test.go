package idgen

import (
	"context"
	"errors"
	"testing"
)

func TestNew_Returns32HexChars(t *testing.T) {
	id := New()
	if len(id) != 32 {
		t.Fatalf("len(id) = %d, want 32", len(id))
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("id %q contains non-hex character %q", id, c)
		}
	}
}

func TestNew_IsRandom(t *testing.T) {
	if New() == New() {
		t.Error("expected two generated ids to differ")
	}
}

func TestUnique_RetriesOnCollision(t *testing.T) {
	ids := []string{"taken-1", "taken-2", "free"}
	calls := 0
	gen := func() string {
		id := ids[calls]
		calls++
		return id
	}
	exists := func(ctx context.Context, id string) (bool, error) {
		return id != "free", nil
	}

	id, err := unique(context.Background(), exists, gen)
	if err != nil {
		t.Fatalf("unique returned error: %v", err)
	}
	if id != "free" {
		t.Errorf("id = %q, want %q", id, "free")
	}
	if calls != 3 {
		t.Errorf("generator calls = %d, want 3", calls)
	}
}

func TestUnique_ExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	exists := func(ctx context.Context, id string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := Unique(context.Background(), exists)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if calls != MaxAttempts {
		t.Errorf("exists calls = %d, want %d", calls, MaxAttempts)
	}
}

func TestUnique_PropagatesLookupError(t *testing.T) {
	lookupErr := errors.New("connection reset")
	exists := func(ctx context.Context, id string) (bool, error) {
		return false, lookupErr
	}

	_, err := Unique(context.Background(), exists)
	if !errors.Is(err, lookupErr) {
		t.Fatalf("err = %v, want wrapped lookup error", err)
	}
}
