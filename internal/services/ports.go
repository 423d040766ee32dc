package services

import (
	"context"
	"time"

	"smartexpense/internal/core"
)

// Ports for the collaborators of the Manager.
type (
	// Store loads and saves the whole collection at once.
	Store interface {
		// LoadAll returns the records in stored order and how many lines were skipped.
		LoadAll() (expenses []core.Expense, skipped int, err error)
		// SaveAll fully replaces the stored collection.
		SaveAll(expenses []core.Expense) error
	}

	// Notifier is told about every persisted mutation.
	Notifier interface {
		Notify(ctx context.Context, ev Event) error
	}

	// Exporter writes a read-only copy of the collection somewhere else.
	Exporter interface {
		Name() string
		Export(ctx context.Context, expenses []core.Expense) error
	}
)

// EventType names the kind of mutation.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	default:
		return false
	}
}

// Event describes a persisted mutation. For deletions Expense holds the removed record.
type Event struct {
	Type       EventType
	Expense    core.Expense
	OccurredAt time.Time
}
