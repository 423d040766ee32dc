package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
	"smartexpense/internal/log"
)

// Manager owns the live expense collection. Every read and write goes
// through it; every mutation rewrites the whole store.
//
// A failed save is reported to the caller but the in-memory change is kept:
// the next successful mutation persists it. No rollback is attempted.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	expenses []core.Expense
	skipped  int
	version  uint64

	logger   *log.Logger
	notifier Notifier
	newID    func() string
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for mutation and load diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.WithComponent(log.ComponentManager)
		}
	}
}

// WithNotifier publishes an Event after each persisted mutation.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager loads the collection from store. This is the only time the
// store is read; a read failure is a startup failure.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:  store,
		logger: log.Discard().WithComponent(log.ComponentManager),
		newID:  core.NewID,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	loaded, skipped, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	seen := make(map[string]struct{}, len(loaded))
	m.expenses = make([]core.Expense, 0, len(loaded))
	for _, e := range loaded {
		if _, dup := seen[e.ID]; dup {
			m.logger.Warn("Dropping expense with duplicate id", log.FieldExpenseID, e.ID)
			skipped++
			continue
		}
		seen[e.ID] = struct{}{}
		m.expenses = append(m.expenses, e)
	}
	m.skipped = skipped

	if skipped > 0 {
		m.logger.Warn("Skipped malformed lines while loading", log.FieldSkipped, skipped, log.FieldCount, len(m.expenses))
	} else {
		m.logger.Debug("Expenses loaded", log.FieldCount, len(m.expenses))
	}
	return m, nil
}

// Skipped reports how many stored lines were dropped at load time.
func (m *Manager) Skipped() int {
	return m.skipped
}

// Version increases on every in-memory mutation.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Add appends a new expense with a fresh id and persists the collection.
// The id is returned even when persisting fails.
func (m *Manager) Add(ctx context.Context, f core.Fields) (string, error) {
	m.mu.Lock()
	id := m.freshIDLocked()
	e := core.Expense{ID: id}.WithFields(f)
	m.expenses = append(m.expenses, e)
	m.version++
	err := m.persistLocked()
	m.mu.Unlock()

	if err != nil {
		m.logFailure(ctx, "Failed to persist new expense", log.OpCreate, e, err)
		return id, fmt.Errorf("save expense %s: %w", id, err)
	}

	m.logMutation(ctx, "Expense created", log.OpCreate, e)
	m.publish(ctx, EventCreated, e)
	return id, nil
}

// Remove deletes the expense with id. It persists only when something was removed.
func (m *Manager) Remove(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return false, nil
	}
	removed := m.expenses[i]
	m.expenses = slices.Delete(m.expenses, i, i+1)
	m.version++
	err := m.persistLocked()
	m.mu.Unlock()

	if err != nil {
		m.logFailure(ctx, "Failed to persist removal", log.OpDelete, removed, err)
		return true, fmt.Errorf("remove expense %s: %w", id, err)
	}

	m.logMutation(ctx, "Expense removed", log.OpDelete, removed)
	m.publish(ctx, EventDeleted, removed)
	return true, nil
}

// Update replaces the mutable fields of the expense with id, keeping the id
// and position. A missing id is reported as found=false and nothing is saved.
func (m *Manager) Update(ctx context.Context, id string, f core.Fields) (bool, error) {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return false, nil
	}
	updated := m.expenses[i].WithFields(f)
	m.expenses[i] = updated
	m.version++
	err := m.persistLocked()
	m.mu.Unlock()

	if err != nil {
		m.logFailure(ctx, "Failed to persist update", log.OpUpdate, updated, err)
		return true, fmt.Errorf("update expense %s: %w", id, err)
	}

	m.logMutation(ctx, "Expense updated", log.OpUpdate, updated)
	m.publish(ctx, EventUpdated, updated)
	return true, nil
}

// Get looks up an expense by id.
func (m *Manager) Get(id string) (core.Expense, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.expenses[i], true
	}
	return core.Expense{}, false
}

// List returns a copy of the collection in insertion order.
func (m *Manager) List() []core.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.expenses)
}

// Len returns the number of expenses.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.expenses)
}

// Total sums every amount, refunds included.
func (m *Manager) Total() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, e := range m.expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// FilterByCategory returns expenses whose category contains text, ignoring
// case. Blank text matches everything.
func (m *Manager) FilterByCategory(text string) []core.Expense {
	return m.Find(Query{Category: text})
}

// FilterByDateRange returns expenses dated within [from, to]. An inverted
// range yields nothing.
func (m *Manager) FilterByDateRange(from, to core.Date) []core.Expense {
	return m.Find(Query{From: &from, To: &to})
}

// Search matches text, ignoring case, against every displayed column:
// id, date, amount, category and note. Blank text matches everything.
func (m *Manager) Search(text string) []core.Expense {
	return m.Find(Query{Text: text})
}

// Query combines the filters; zero fields match everything.
type Query struct {
	Category string
	From     *core.Date
	To       *core.Date
	Text     string
}

// Find returns the expenses matching every set field of q, in insertion order.
func (m *Manager) Find(q Query) []core.Expense {
	category := strings.ToLower(strings.TrimSpace(q.Category))
	text := strings.ToLower(strings.TrimSpace(q.Text))
	return m.filter(func(e core.Expense) bool {
		if category != "" && !strings.Contains(strings.ToLower(e.Category), category) {
			return false
		}
		if q.From != nil && e.Date.Before(*q.From) {
			return false
		}
		if q.To != nil && e.Date.After(*q.To) {
			return false
		}
		return text == "" || matchesText(e, text)
	})
}

func matchesText(e core.Expense, needle string) bool {
	for _, col := range []string{e.ID, e.Date.String(), e.Amount.String(), core.FormatAmount(e.Amount), e.Category, e.Note} {
		if strings.Contains(strings.ToLower(col), needle) {
			return true
		}
	}
	return false
}

// MonthlySummary sums amounts per "YYYY-MM", ordered by month ascending.
func (m *Manager) MonthlySummary() []core.MonthTotal {
	m.mu.RLock()
	sums := make(map[string]decimal.Decimal)
	for _, e := range m.expenses {
		key := e.Date.MonthKey()
		sums[key] = sums[key].Add(e.Amount)
	}
	m.mu.RUnlock()

	out := make([]core.MonthTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.MonthTotal{Month: k, Total: v})
	}
	slices.SortFunc(out, func(a, b core.MonthTotal) int {
		return strings.Compare(a.Month, b.Month)
	})
	return out
}

// Categories returns the distinct non-empty categories, sorted.
func (m *Manager) Categories() []string {
	m.mu.RLock()
	set := make(map[string]struct{})
	for _, e := range m.expenses {
		if strings.TrimSpace(e.Category) != "" {
			set[e.Category] = struct{}{}
		}
	}
	m.mu.RUnlock()

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Export hands a snapshot of the collection to x.
func (m *Manager) Export(ctx context.Context, x Exporter) error {
	snapshot := m.List()
	if err := x.Export(ctx, snapshot); err != nil {
		m.logger.ErrorContext(ctx, "Export failed", log.FieldTarget, x.Name(), log.FieldError, err)
		return fmt.Errorf("export to %s: %w", x.Name(), err)
	}
	m.logger.InfoContext(ctx, "Export completed", log.FieldTarget, x.Name(), log.FieldCount, len(snapshot))
	return nil
}

func (m *Manager) filter(keep func(core.Expense) bool) []core.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Expense, 0)
	for _, e := range m.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manager) indexLocked(id string) int {
	return slices.IndexFunc(m.expenses, func(e core.Expense) bool { return e.ID == id })
}

func (m *Manager) freshIDLocked() string {
	for {
		id := m.newID()
		if id != "" && m.indexLocked(id) < 0 {
			return id
		}
	}
}

func (m *Manager) persistLocked() error {
	return m.store.SaveAll(slices.Clone(m.expenses))
}

func (m *Manager) publish(ctx context.Context, t EventType, e core.Expense) {
	if m.notifier == nil {
		return
	}
	ev := Event{Type: t, Expense: e, OccurredAt: m.now()}
	if err := m.notifier.Notify(ctx, ev); err != nil {
		// The mutation is already saved locally
		m.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, e.ID, log.FieldOperation, log.OpNotify, log.FieldError, err)
	}
}

func (m *Manager) logMutation(ctx context.Context, msg, op string, e core.Expense) {
	fields := log.NewFields().
		WithExpense(e.ID, e.Date.String(), e.Amount.String(), e.Category).
		WithOperation(op)
	m.logger.InfoContext(ctx, msg, fields.ToSlice()...)
}

func (m *Manager) logFailure(ctx context.Context, msg, op string, e core.Expense, err error) {
	fields := log.NewFields().
		WithExpense(e.ID, e.Date.String(), e.Amount.String(), e.Category).
		WithOperation(op).
		WithError(err)
	m.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
