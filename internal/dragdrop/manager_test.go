package dragdrop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

type fakeGateway struct {
	updateErr error
	updated   []events.Event
}

func (f *fakeGateway) Create(_ context.Context, _ string, _ events.Event) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeGateway) List(_ context.Context, _ string) ([]events.Event, error) {
	return nil, nil
}

func (f *fakeGateway) Update(_ context.Context, _ string, _ string, event events.Event) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, event)
	return nil
}

func (f *fakeGateway) Delete(_ context.Context, _ string, _ string) error {
	return nil
}

func storeWithChip(ev events.Event) *events.Store {
	s := events.NewStore()
	s.Replace([]events.Event{ev})
	return s
}

func TestGrabRejectsSecondSession(t *testing.T) {
	m := NewManager(&fakeGateway{})
	_, err := m.Grab("user-1", chip("09:00", "10:00"), wednesday(), testViewport())
	require.NoError(t, err)

	_, err = m.Grab("user-1", chip("09:00", "10:00"), wednesday(), testViewport())
	assert.ErrorIs(t, err, ErrSessionActive)

	// A different user is unaffected.
	_, err = m.Grab("user-2", chip("09:00", "10:00"), wednesday(), testViewport())
	assert.NoError(t, err)
}

func TestReleaseCommitsGatewayThenStore(t *testing.T) {
	gw := &fakeGateway{}
	m := NewManager(gw)
	ev := chip("14:00", "15:30")
	store := storeWithChip(ev)

	_, err := m.Grab("user-1", ev, wednesday(), testViewport())
	require.NoError(t, err)

	x, y := pointAt(testViewport(), 3, 9)
	result, err := m.Release(context.Background(), "user-1", store, x, y)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, result.Outcome)

	require.Len(t, gw.updated, 1)
	assert.Equal(t, "09:00", gw.updated[0].StartTime)
	assert.Equal(t, "10:00", gw.updated[0].EndTime)

	patched, ok := store.Get(ev.ID)
	require.True(t, ok)
	assert.Equal(t, "09:00", patched.StartTime)
	assert.Equal(t, "10:00", patched.EndTime)
	assert.Equal(t, timeutil.WeekStart(wednesday()).AddDate(0, 0, 3), patched.Date)
	assert.Equal(t, ev.Title, patched.Title, "only schedule fields change")

	_, exists := m.Session("user-1")
	assert.False(t, exists, "session cleared after release")
}

func TestReleaseOverGapAborts(t *testing.T) {
	gw := &fakeGateway{}
	m := NewManager(gw)
	ev := chip("09:00", "10:00")
	store := storeWithChip(ev)

	_, err := m.Grab("user-1", ev, wednesday(), testViewport())
	require.NoError(t, err)

	result, err := m.Release(context.Background(), "user-1", store, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.Empty(t, gw.updated)

	unchanged, _ := store.Get(ev.ID)
	assert.Equal(t, "09:00", unchanged.StartTime)

	_, exists := m.Session("user-1")
	assert.False(t, exists)
}

func TestReleaseGatewayFailureLeavesStoreUntouched(t *testing.T) {
	gw := &fakeGateway{updateErr: errors.New("connection reset")}
	m := NewManager(gw)
	ev := chip("09:00", "10:00")
	store := storeWithChip(ev)

	_, err := m.Grab("user-1", ev, wednesday(), testViewport())
	require.NoError(t, err)

	x, y := pointAt(testViewport(), 2, 11)
	result, err := m.Release(context.Background(), "user-1", store, x, y)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)

	unchanged, _ := store.Get(ev.ID)
	assert.Equal(t, "09:00", unchanged.StartTime)
	assert.Equal(t, timeutil.DateOnly(wednesday()), unchanged.Date)

	_, exists := m.Session("user-1")
	assert.False(t, exists, "session cleared even on failure")

	// The chip can be grabbed again once the failure resolved.
	_, err = m.Grab("user-1", ev, wednesday(), testViewport())
	assert.NoError(t, err)
}

func TestReleaseWithoutSession(t *testing.T) {
	m := NewManager(&fakeGateway{})
	_, err := m.Release(context.Background(), "user-1", events.NewStore(), 1, 1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCancelDropsSession(t *testing.T) {
	m := NewManager(&fakeGateway{})
	assert.False(t, m.Cancel("user-1"))

	_, err := m.Grab("user-1", chip("09:00", "10:00"), wednesday(), testViewport())
	require.NoError(t, err)
	assert.True(t, m.Cancel("user-1"))

	_, exists := m.Session("user-1")
	assert.False(t, exists)
}

func TestTrackWithoutSession(t *testing.T) {
	m := NewManager(&fakeGateway{})
	_, err := m.Track("user-1", 10, 10)
	assert.ErrorIs(t, err, ErrNoSession)
}

// The track and release requests arrive independently, so a release can land
// while tracks for the same session are still in flight. Run under -race.
func TestTrackOverlappingRelease(t *testing.T) {
	ev := chip("14:00", "15:30")
	m := NewManager(&fakeGateway{})
	store := storeWithChip(ev)

	session, err := m.Grab("user-1", ev, wednesday(), testViewport())
	require.NoError(t, err)

	x, y := pointAt(testViewport(), 0, 9)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				if _, err := m.Track("user-1", x, y); err != nil {
					lost := errors.Is(err, ErrNoSession) || errors.Is(err, ErrNotDragging)
					assert.True(t, lost, "unexpected track error: %v", err)
				}
				_ = session.Ghost()
				_ = session.ActiveZone()
				_ = session.State()
			}
		}()
	}

	var result Result
	var releaseErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		result, releaseErr = m.Release(context.Background(), "user-1", store, x, y)
	}()

	close(start)
	wg.Wait()

	require.NoError(t, releaseErr)
	assert.Equal(t, OutcomeCommitted, result.Outcome)

	moved, ok := store.Get(ev.ID)
	require.True(t, ok)
	assert.Equal(t, "09:00", moved.StartTime)

	_, exists := m.Session("user-1")
	assert.False(t, exists)
}
