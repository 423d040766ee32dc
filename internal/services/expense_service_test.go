package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
	"smartexpense/internal/storage"
	"smartexpense/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fields(category, amount string, date core.Date, note string) core.Fields {
	return core.Fields{Date: date, Amount: dec(amount), Category: category, Note: note}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestManager(t *testing.T, items ...core.Expense) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New(items...)
	m, err := NewManager(store, WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type failingLoadStore struct{}

func (failingLoadStore) LoadAll() ([]core.Expense, int, error) {
	return nil, 0, errors.New("permission denied")
}
func (failingLoadStore) SaveAll([]core.Expense) error { return nil }

func TestNewManagerLoadFailure(t *testing.T) {
	if _, err := NewManager(failingLoadStore{}); err == nil {
		t.Fatal("expected startup failure")
	}
}

func TestNewManagerDropsDuplicateIDs(t *testing.T) {
	a := core.Expense{ID: "x", Date: core.NewDate(2024, 1, 1), Amount: dec("1"), Category: "A"}
	b := core.Expense{ID: "x", Date: core.NewDate(2024, 1, 2), Amount: dec("2"), Category: "B"}
	m, _ := newTestManager(t, a, b)
	if m.Len() != 1 || m.Skipped() != 1 {
		t.Fatalf("len=%d skipped=%d", m.Len(), m.Skipped())
	}
	got, _ := m.Get("x")
	if got.Category != "A" {
		t.Fatalf("expected first record to win, got %+v", got)
	}
}

func TestManagerAdd(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	id, err := m.Add(ctx, fields("Food", "12.50", core.NewDate(2024, 3, 1), "lunch"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.Len() != 1 || store.Saves() != 1 {
		t.Fatalf("len=%d saves=%d", m.Len(), store.Saves())
	}
	got, ok := m.Get(id)
	if !ok || got.Category != "Food" || !got.Amount.Equal(dec("12.5")) || got.ID != id {
		t.Fatalf("Get(%s) = %+v, %v", id, got, ok)
	}

	persisted, _, _ := store.LoadAll()
	if len(persisted) != 1 || !persisted[0].Equal(got) {
		t.Fatalf("persisted = %+v", persisted)
	}
}

func TestManagerAddSkipsCollidingIDs(t *testing.T) {
	existing := core.Expense{ID: "id-1", Date: core.NewDate(2024, 1, 1), Amount: dec("1")}
	m, _ := newTestManager(t, existing)
	id, err := m.Add(context.Background(), fields("A", "1", core.NewDate(2024, 1, 1), ""))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id != "id-2" {
		t.Fatalf("expected colliding id to be skipped, got %s", id)
	}
}

func TestManagerAddKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	for _, c := range []string{"c", "a", "b"} {
		if _, err := m.Add(ctx, fields(c, "1", core.NewDate(2024, 1, 1), "")); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	list := m.List()
	if list[0].Category != "c" || list[1].Category != "a" || list[2].Category != "b" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestManagerRemove(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	id, _ := m.Add(ctx, fields("Food", "1", core.NewDate(2024, 1, 1), ""))
	other, _ := m.Add(ctx, fields("Bus", "2", core.NewDate(2024, 1, 1), ""))

	removed, err := m.Remove(ctx, id)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, ok := m.Get(id); ok {
		t.Fatal("removed expense still retrievable")
	}
	if m.Len() != 1 || store.Saves() != 3 {
		t.Fatalf("len=%d saves=%d", m.Len(), store.Saves())
	}
	if _, ok := m.Get(other); !ok {
		t.Fatal("other expense lost")
	}

	removed, err = m.Remove(ctx, "missing")
	if err != nil || removed {
		t.Fatalf("Remove(missing) = %v, %v", removed, err)
	}
	if store.Saves() != 3 {
		t.Fatalf("remove of missing id persisted: saves=%d", store.Saves())
	}
}

func TestManagerUpdate(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	first, _ := m.Add(ctx, fields("Food", "1", core.NewDate(2024, 1, 1), ""))
	second, _ := m.Add(ctx, fields("Bus", "2", core.NewDate(2024, 1, 2), ""))

	ok, err := m.Update(ctx, first, fields("Groceries", "-4.20", core.NewDate(2024, 2, 3), "refund"))
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}
	list := m.List()
	if len(list) != 2 || list[0].ID != first || list[1].ID != second {
		t.Fatalf("update changed identity or order: %+v", list)
	}
	if list[0].Category != "Groceries" || !list[0].Amount.Equal(dec("-4.2")) || list[0].Note != "refund" {
		t.Fatalf("fields not replaced: %+v", list[0])
	}
	if store.Saves() != 3 {
		t.Fatalf("saves=%d", store.Saves())
	}

	ok, err = m.Update(ctx, "missing", fields("X", "1", core.NewDate(2024, 1, 1), ""))
	if err != nil || ok {
		t.Fatalf("Update(missing) = %v, %v", ok, err)
	}
	if store.Saves() != 3 || m.Len() != 2 {
		t.Fatalf("update of missing id changed state: saves=%d len=%d", store.Saves(), m.Len())
	}
}

func TestManagerPersistFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	store.FailSaves(true)

	id, err := m.Add(ctx, fields("Food", "1", core.NewDate(2024, 1, 1), ""))
	if !errors.Is(err, memory.ErrSaveFailed) {
		t.Fatalf("expected save failure, got %v", err)
	}
	if _, ok := m.Get(id); !ok {
		t.Fatal("in-memory add should be kept after a failed save")
	}

	removed, err := m.Remove(ctx, id)
	if !removed || !errors.Is(err, memory.ErrSaveFailed) {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if m.Len() != 0 {
		t.Fatal("in-memory remove should be kept after a failed save")
	}

	store.FailSaves(false)
	if _, err := m.Add(ctx, fields("Bus", "2", core.NewDate(2024, 1, 1), "")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	persisted, _, _ := store.LoadAll()
	if len(persisted) != 1 || persisted[0].Category != "Bus" {
		t.Fatalf("persisted = %+v", persisted)
	}
}

func TestManagerListIsACopy(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	id, _ := m.Add(ctx, fields("Food", "1", core.NewDate(2024, 1, 1), ""))

	list := m.List()
	list[0].Category = "changed"
	got, _ := m.Get(id)
	if got.Category != "Food" {
		t.Fatal("List exposed internal storage")
	}
}

func TestManagerTotal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	if !m.Total().IsZero() {
		t.Fatalf("empty total = %s", m.Total())
	}
	for _, a := range []string{"10.10", "-2.05", "0.95"} {
		m.Add(ctx, fields("A", a, core.NewDate(2024, 1, 1), ""))
	}
	if !m.Total().Equal(dec("9")) {
		t.Fatalf("total = %s", m.Total())
	}
}

func TestManagerFilterByCategory(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	for _, c := range []string{"Food", "Fast food", "Transport", ""} {
		m.Add(ctx, fields(c, "1", core.NewDate(2024, 1, 1), ""))
	}

	if got := m.FilterByCategory(""); len(got) != 4 {
		t.Fatalf("blank filter returned %d", len(got))
	}
	if got := m.FilterByCategory("   "); len(got) != 4 {
		t.Fatalf("whitespace filter returned %d", len(got))
	}
	got := m.FilterByCategory("FOOD")
	if len(got) != 2 || got[0].Category != "Food" || got[1].Category != "Fast food" {
		t.Fatalf("FOOD filter = %+v", got)
	}
	if got := m.FilterByCategory("nope"); got == nil || len(got) != 0 {
		t.Fatalf("no-match filter = %v", got)
	}
}

func TestManagerFilterByDateRange(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	for _, d := range []core.Date{core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 15), core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 1)} {
		m.Add(ctx, fields("A", "1", d, ""))
	}

	got := m.FilterByDateRange(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	if len(got) != 3 {
		t.Fatalf("inclusive range returned %d", len(got))
	}
	if got := m.FilterByDateRange(core.NewDate(2024, 1, 15), core.NewDate(2024, 1, 15)); len(got) != 1 {
		t.Fatalf("single-day range returned %d", len(got))
	}
	if got := m.FilterByDateRange(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1)); len(got) != 0 {
		t.Fatalf("inverted range returned %d", len(got))
	}
}

func TestManagerSearch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	m.Add(ctx, fields("Food", "12.50", core.NewDate(2024, 3, 1), "Lunch with Ana"))
	m.Add(ctx, fields("Transport", "3", core.NewDate(2024, 4, 2), ""))

	cases := map[string]int{
		"":        2,
		"lunch":   1,
		"TRANS":   1,
		"2024-0":  2,
		"12.50":   1,
		"3.00":    1,
		"id-2":    1,
		"nothing": 0,
	}
	for q, want := range cases {
		if got := m.Search(q); len(got) != want {
			t.Errorf("Search(%q) returned %d, want %d", q, len(got), want)
		}
	}
}

func TestManagerFindCombinesFilters(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	m.Add(ctx, fields("Food", "10", core.NewDate(2024, 1, 5), "market"))
	m.Add(ctx, fields("Food", "20", core.NewDate(2024, 2, 5), "market"))
	m.Add(ctx, fields("Food", "30", core.NewDate(2024, 2, 6), "restaurant"))
	m.Add(ctx, fields("Transport", "40", core.NewDate(2024, 2, 7), "market bus"))

	from := core.NewDate(2024, 2, 1)
	got := m.Find(Query{Category: "food", From: &from, Text: "market"})
	if len(got) != 1 || !got[0].Amount.Equal(dec("20")) {
		t.Fatalf("Find = %+v", got)
	}

	to := core.NewDate(2024, 1, 31)
	if got := m.Find(Query{To: &to}); len(got) != 1 {
		t.Fatalf("open-start range returned %d", len(got))
	}
	if got := m.Find(Query{}); len(got) != 4 {
		t.Fatalf("empty query returned %d", len(got))
	}
}

func TestManagerMonthlySummary(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	if got := m.MonthlySummary(); len(got) != 0 {
		t.Fatalf("empty summary = %v", got)
	}

	m.Add(ctx, fields("A", "7", core.NewDate(2024, 2, 1), ""))
	m.Add(ctx, fields("A", "10", core.NewDate(2024, 1, 5), ""))
	m.Add(ctx, fields("A", "5", core.NewDate(2024, 1, 20), ""))

	got := m.MonthlySummary()
	if len(got) != 2 {
		t.Fatalf("summary = %v", got)
	}
	if got[0].Month != "2024-01" || !got[0].Total.Equal(dec("15")) {
		t.Fatalf("first month = %+v", got[0])
	}
	if got[1].Month != "2024-02" || !got[1].Total.Equal(dec("7")) {
		t.Fatalf("second month = %+v", got[1])
	}
}

func TestManagerCategories(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	for _, c := range []string{"Transport", "Food", "", "Food", " "} {
		m.Add(ctx, fields(c, "1", core.NewDate(2024, 1, 1), ""))
	}
	got := m.Categories()
	if len(got) != 2 || got[0] != "Food" || got[1] != "Transport" {
		t.Fatalf("Categories = %v", got)
	}
}

func TestManagerNotifies(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewManager(memory.New(), WithNotifier(n), WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	id, _ := m.Add(ctx, fields("A", "1", core.NewDate(2024, 1, 1), ""))
	m.Update(ctx, id, fields("B", "2", core.NewDate(2024, 1, 1), ""))
	m.Update(ctx, "missing", fields("B", "2", core.NewDate(2024, 1, 1), ""))
	m.Remove(ctx, id)
	m.Remove(ctx, id)

	want := []EventType{EventCreated, EventUpdated, EventDeleted}
	if len(n.events) != len(want) {
		t.Fatalf("events = %+v", n.events)
	}
	for i, ev := range n.events {
		if ev.Type != want[i] || ev.Expense.ID != id || !ev.OccurredAt.Equal(at) {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
	if n.events[1].Expense.Category != "B" {
		t.Fatalf("update event carries old fields: %+v", n.events[1])
	}
}

func TestManagerNotifierFailureDoesNotFailMutation(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	m, _ := NewManager(memory.New(), WithNotifier(n))
	if _, err := m.Add(context.Background(), fields("A", "1", core.NewDate(2024, 1, 1), "")); err != nil {
		t.Fatalf("Add should succeed when notification fails: %v", err)
	}
}

func TestManagerNoNotificationOnFailedSave(t *testing.T) {
	n := &recordingNotifier{}
	store := memory.New()
	store.FailSaves(true)
	m, _ := NewManager(store, WithNotifier(n))
	m.Add(context.Background(), fields("A", "1", core.NewDate(2024, 1, 1), ""))
	if len(n.events) != 0 {
		t.Fatalf("unexpected events %+v", n.events)
	}
}

func TestManagerVersion(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	v0 := m.Version()
	id, _ := m.Add(ctx, fields("A", "1", core.NewDate(2024, 1, 1), ""))
	m.Remove(ctx, "missing")
	if m.Version() != v0+1 {
		t.Fatalf("version = %d", m.Version())
	}
	m.Update(ctx, id, fields("B", "1", core.NewDate(2024, 1, 1), ""))
	if m.Version() != v0+2 {
		t.Fatalf("version = %d", m.Version())
	}
}

func TestManagerEndToEndWithFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.csv")

	m, err := NewManager(storage.NewFileStore(path))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	first, err := m.Add(ctx, fields("Food", "12.50", core.NewDate(2024, 3, 1), "lunch"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := m.Add(ctx, fields("Transport", "3.00", core.NewDate(2024, 3, 2), ""))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !m.Total().Equal(dec("15.50")) {
		t.Fatalf("total = %s", m.Total())
	}
	if removed, err := m.Remove(ctx, first); !removed || err != nil {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if !m.Total().Equal(dec("3.00")) {
		t.Fatalf("total = %s", m.Total())
	}

	reloaded, err := NewManager(storage.NewFileStore(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	list := reloaded.List()
	if len(list) != 1 || list[0].ID != second || list[0].Category != "Transport" || !list[0].Amount.Equal(dec("3")) || list[0].Note != "" {
		t.Fatalf("reloaded = %+v", list)
	}
	if !list[0].Date.Equal(core.NewDate(2024, 3, 2)) || reloaded.Skipped() != 0 {
		t.Fatalf("reloaded = %+v skipped=%d", list, reloaded.Skipped())
	}
}

func TestManagerConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(memory.New())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Add(ctx, fields("A", "1", core.NewDate(2024, 1, 1), ""))
			_ = m.Total()
			_ = m.MonthlySummary()
		}()
	}
	wg.Wait()
	if m.Len() != 20 || !m.Total().Equal(dec("20")) {
		t.Fatalf("len=%d total=%s", m.Len(), m.Total())
	}
}
