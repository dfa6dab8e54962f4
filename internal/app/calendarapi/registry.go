package calendarapi

import (
	"context"
	"sync"

	"github.com/flowcal/project/internal/app/events"
)

// StoreRegistry hands out the per-user event store, loading it from the
// gateway the first time a user shows up. The store then lives for the
// process lifetime and is kept current by the drag and assistant paths.
type StoreRegistry struct {
	Gateway events.Gateway

	mu     sync.Mutex
	stores map[string]*events.Store
}

func NewStoreRegistry(gateway events.Gateway) *StoreRegistry {
	return &StoreRegistry{
		Gateway: gateway,
		stores:  map[string]*events.Store{},
	}
}

// ForUser returns the user's store, hydrating it on first access.
func (r *StoreRegistry) ForUser(ctx context.Context, userID string) (*events.Store, error) {
	r.mu.Lock()
	store, ok := r.stores[userID]
	r.mu.Unlock()
	if ok {
		return store, nil
	}

	list, err := r.Gateway.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok = r.stores[userID]; ok {
		return store, nil
	}
	store = events.NewStore()
	store.Replace(list)
	r.stores[userID] = store
	return store, nil
}

// Reload refreshes the user's store from the gateway.
func (r *StoreRegistry) Reload(ctx context.Context, userID string) (*events.Store, error) {
	store, err := r.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := r.Gateway.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	store.Replace(list)
	return store, nil
}
