package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	"smartexpense/internal/services"
	"smartexpense/internal/storage/memory"
)

type fakeMirror struct {
	rows     map[string]core.Expense
	replaced int
	err      error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: map[string]core.Expense{}}
}

func (f *fakeMirror) Upsert(_ context.Context, e core.Expense) error {
	if f.err != nil {
		return f.err
	}
	f.rows[e.ID] = e
	return nil
}

func (f *fakeMirror) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeMirror) ReplaceAll(_ context.Context, expenses []core.Expense) error {
	if f.err != nil {
		return f.err
	}
	f.rows = map[string]core.Expense{}
	for _, e := range expenses {
		f.rows[e.ID] = e
	}
	f.replaced++
	return nil
}

func sample(id, amount string) core.Expense {
	return core.Expense{
		ID:       id,
		Date:     core.NewDate(2024, 5, 17),
		Amount:   decimal.RequireFromString(amount),
		Category: "food",
		Note:     "lunch",
	}
}

func event(t services.EventType, e core.Expense) *amqp.ExpenseEventMessage {
	return amqp.NewExpenseEventMessage(services.Event{Type: t, Expense: e, OccurredAt: time.Now()})
}

func TestHandleEventAppliesChanges(t *testing.T) {
	m := newFakeMirror()
	w := NewMirrorWorker(m, nil)
	ctx := context.Background()

	if err := w.HandleEvent(ctx, event(services.EventCreated, sample("a", "12.5"))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.HandleEvent(ctx, event(services.EventUpdated, sample("a", "-3"))); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := m.rows["a"]
	if !ok {
		t.Fatal("expected row a")
	}
	if !got.Amount.Equal(decimal.RequireFromString("-3")) {
		t.Errorf("amount = %s, want -3", got.Amount)
	}

	if err := w.HandleEvent(ctx, event(services.EventDeleted, sample("a", "-3"))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(m.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(m.rows))
	}
}

func TestHandleEventRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*amqp.ExpenseEventMessage)
	}{
		{"BadDate", func(m *amqp.ExpenseEventMessage) { m.Date = "17/05/2024" }},
		{"ZeroDate", func(m *amqp.ExpenseEventMessage) { m.Date = "0001-01-01" }},
		{"BadAmount", func(m *amqp.ExpenseEventMessage) { m.Amount = "lots" }},
		{"UnknownType", func(m *amqp.ExpenseEventMessage) { m.Type = "expense.archived" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeMirror()
			w := NewMirrorWorker(m, nil)
			msg := event(services.EventCreated, sample("a", "1"))
			tt.mutate(msg)

			err := w.HandleEvent(context.Background(), msg)
			if !errors.Is(err, amqp.ErrBadPayload) {
				t.Fatalf("err = %v, want ErrBadPayload", err)
			}
			if len(m.rows) != 0 {
				t.Errorf("mirror changed on bad payload: %v", m.rows)
			}
		})
	}
}

func TestHandleEventPropagatesMirrorError(t *testing.T) {
	m := newFakeMirror()
	m.err = errors.New("disk full")
	w := NewMirrorWorker(m, nil)

	err := w.HandleEvent(context.Background(), event(services.EventDeleted, sample("a", "1")))
	if !errors.Is(err, m.err) {
		t.Fatalf("err = %v, want %v", err, m.err)
	}
	if errors.Is(err, amqp.ErrBadPayload) {
		t.Error("mirror failure reported as bad payload")
	}
}

func TestStartupSyncReplacesMirror(t *testing.T) {
	m := newFakeMirror()
	m.rows["stale"] = sample("stale", "9")
	w := NewMirrorWorker(m, nil)

	store := memory.New(sample("a", "1"), sample("b", "2"))
	if err := w.StartupSync(context.Background(), store); err != nil {
		t.Fatalf("StartupSync: %v", err)
	}
	if m.replaced != 1 {
		t.Errorf("replaced = %d, want 1", m.replaced)
	}
	if _, ok := m.rows["stale"]; ok {
		t.Error("stale row survived startup sync")
	}
	if len(m.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(m.rows))
	}
}
