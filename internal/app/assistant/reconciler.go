package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcal/project/internal/app/events"
)

var ErrNoValidEvents = errors.New("no valid events found")

// Reconciler applies interpreted batches against the persistence gateway and
// the user's event store. Gateway calls run sequentially; add and update
// batches end with a full reload so the store reflects exactly what was
// persisted even when individual calls failed.
type Reconciler struct {
	Gateway events.Gateway
	Logger  *slog.Logger
}

func NewReconciler(gateway events.Gateway) *Reconciler {
	return &Reconciler{
		Gateway: gateway,
		Logger:  slog.Default().With("component", "reconciler"),
	}
}

// ApplyAdd filters out incomplete entries, assigns palette colors to entries
// without one and creates the survivors one by one. An all-invalid batch
// fails with ErrNoValidEvents. Returns the surviving entries as persisted
// (colors filled in).
func (r *Reconciler) ApplyAdd(ctx context.Context, userID string, store *events.Store, current time.Time, entries []AddEntry) ([]AddEntry, error) {
	valid := make([]AddEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Valid() {
			valid = append(valid, entry)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoValidEvents
	}

	for i := range valid {
		if valid[i].Color == "" {
			valid[i].Color = events.RandomColor()
		}
	}

	for _, entry := range valid {
		if _, err := r.Gateway.Create(ctx, userID, entry.Event(current)); err != nil {
			// The entry is lost but the batch continues; the reload below
			// reflects exactly what was persisted.
			r.Logger.Warn("create failed for interpreted event", "title", entry.Title, "error", err)
		}
	}

	if err := r.reload(ctx, userID, store); err != nil {
		return nil, err
	}
	return valid, nil
}

// ApplyUpdate merges each entry onto the store's current copy of the event
// and pushes the merged record through the gateway. Entries referencing
// unknown ids are skipped. Returns the merged events that were persisted.
func (r *Reconciler) ApplyUpdate(ctx context.Context, userID string, store *events.Store, current time.Time, entries []UpdateEntry) ([]events.Event, error) {
	var updated []events.Event
	for _, entry := range entries {
		existing, ok := store.Get(entry.ID)
		if !ok {
			r.Logger.Warn("skipping update for unknown event id", "id", entry.ID)
			continue
		}
		merged := entry.Merge(existing, current)
		if err := r.Gateway.Update(ctx, userID, entry.ID, merged); err != nil {
			r.Logger.Warn("update failed for interpreted event", "id", entry.ID, "error", err)
			continue
		}
		updated = append(updated, merged)
	}

	if err := r.reload(ctx, userID, store); err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyDelete deletes each id sequentially, removing successfully deleted
// ids from the store immediately. Deletion has no merge ambiguity, so no
// reload is needed.
func (r *Reconciler) ApplyDelete(ctx context.Context, userID string, store *events.Store, ids []string) ([]string, error) {
	var deleted []string
	for _, id := range ids {
		if err := r.Gateway.Delete(ctx, userID, id); err != nil {
			r.Logger.Warn("delete failed for interpreted event", "id", id, "error", err)
			continue
		}
		store.Remove(id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (r *Reconciler) reload(ctx context.Context, userID string, store *events.Store) error {
	loaded, err := r.Gateway.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("reload events after batch: %w", err)
	}
	store.Replace(loaded)
	return nil
}
