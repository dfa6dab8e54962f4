package events

import (
	"context"
	"errors"
)

var ErrEventNotFound = errors.New("event not found")

// Gateway is the persistent record store backing events. Create assigns and
// returns the event's id; Update is a whole-attribute replacement of the
// stored record (callers merge first); List returns the user's events
// ordered by absolute start time.
type Gateway interface {
	Create(ctx context.Context, userID string, event Event) (string, error)
	List(ctx context.Context, userID string) ([]Event, error)
	Update(ctx context.Context, userID, eventID string, event Event) error
	Delete(ctx context.Context, userID, eventID string) error
}
