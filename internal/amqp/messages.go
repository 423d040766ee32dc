package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/services"
)

// ErrBadPayload marks a message that can never be applied. Consumers drop
// it instead of requeueing.
var ErrBadPayload = errors.New("bad event payload")

// ExpenseEventMessage carries a full expense record so consumers never need
// to read the source file.
type ExpenseEventMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage flattens ev into its wire form.
func NewExpenseEventMessage(ev services.Event) *ExpenseEventMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ExpenseEventMessage{
		Type:      string(ev.Type),
		ID:        ev.Expense.ID,
		Date:      ev.Expense.Date.String(),
		Amount:    ev.Expense.Amount.String(),
		Category:  ev.Expense.Category,
		Note:      ev.Expense.Note,
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventType returns the typed event kind.
func (m *ExpenseEventMessage) EventType() services.EventType {
	return services.EventType(m.Type)
}

// ToExpense rebuilds and validates the carried record.
func (m *ExpenseEventMessage) ToExpense() (core.Expense, error) {
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	amount, err := core.ParseAmount(m.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	e := core.Expense{ID: m.ID, Date: date, Amount: amount, Category: m.Category, Note: m.Note}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return e, nil
}

// ExpenseEventMessageFromJSON decodes and checks a message body.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.EventType().IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID == "" {
		return nil, core.ErrEmptyID
	}
	return &msg, nil
}
