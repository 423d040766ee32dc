package worker

import (
	"context"
	"fmt"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	"smartexpense/internal/log"
	"smartexpense/internal/services"
)

// Mirror is the sink the worker keeps in step with the expense file.
type Mirror interface {
	Upsert(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, expenses []core.Expense) error
}

// MirrorWorker applies expense change events to a Mirror.
type MirrorWorker struct {
	mirror Mirror
	logger *log.Logger
}

func NewMirrorWorker(mirror Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentMirror),
	}
}

// HandleEvent processes a single expense event from AMQP. Creations and
// updates are upserts; deletions remove by id. Events that can never be
// applied are reported wrapping amqp.ErrBadPayload.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	w.logger.DebugContext(ctx, "Processing expense event",
		log.FieldExpenseID, msg.ID,
		"type", msg.Type)

	switch msg.EventType() {
	case services.EventCreated, services.EventUpdated:
		e, err := msg.ToExpense()
		if err != nil {
			return fmt.Errorf("decode expense %s: %w", msg.ID, err)
		}
		if err := w.mirror.Upsert(ctx, e); err != nil {
			return err
		}
		w.logger.InfoContext(ctx, "Mirrored expense",
			log.FieldExpenseID, e.ID,
			log.FieldOperation, log.OpUpdate)
	case services.EventDeleted:
		if err := w.mirror.Delete(ctx, msg.ID); err != nil {
			return err
		}
		w.logger.InfoContext(ctx, "Removed mirrored expense",
			log.FieldExpenseID, msg.ID,
			log.FieldOperation, log.OpDelete)
	default:
		return fmt.Errorf("%w: unknown event type %q", amqp.ErrBadPayload, msg.Type)
	}
	return nil
}

// StartupSync copies the whole store into the mirror, recovering from events
// missed while the worker was down.
func (w *MirrorWorker) StartupSync(ctx context.Context, store services.Store) error {
	expenses, skipped, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("load expenses for startup sync: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, expenses); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		log.FieldCount, len(expenses),
		log.FieldSkipped, skipped)
	return nil
}
