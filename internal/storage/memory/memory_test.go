package memory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	s := New()
	got, skipped, err := s.LoadAll()
	if err != nil || skipped != 0 || got == nil || len(got) != 0 {
		t.Fatalf("unexpected empty load: %v %d %v", got, skipped, err)
	}

	e := core.Expense{ID: "a", Date: core.NewDate(2024, 1, 1), Amount: decimal.NewFromInt(1), Category: "A"}
	if err := s.SaveAll([]core.Expense{e}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, _ = s.LoadAll()
	if len(got) != 1 || !got[0].Equal(e) || s.Saves() != 1 {
		t.Fatalf("unexpected load: %v saves=%d", got, s.Saves())
	}

	// Returned slices are copies
	got[0].Category = "changed"
	again, _, _ := s.LoadAll()
	if again[0].Category != "A" {
		t.Fatal("LoadAll leaked internal storage")
	}
}

func TestMemoryStoreFailSaves(t *testing.T) {
	s := New()
	s.FailSaves(true)
	if err := s.SaveAll(nil); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	s.FailSaves(false)
	if err := s.SaveAll(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Saves() != 1 {
		t.Fatalf("saves = %d", s.Saves())
	}
}
