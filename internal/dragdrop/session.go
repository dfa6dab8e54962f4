package dragdrop

import (
	"errors"
	"sync"
	"time"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

var ErrNotDragging = errors.New("session is not in the dragging state")

// State is the lifecycle phase of a drag session.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Ghost is the free-floating visual proxy that follows the pointer. It is
// plain session state; the client renders it from here instead of mutating
// document nodes directly.
type Ghost struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CommitTarget is the resolved destination of a drop: an absolute day plus
// the new clock times.
type CommitTarget struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
}

const ghostWidth = 150.0

// Session tracks one reschedule gesture for one event. The gesture is driven
// by independent requests, so a track can arrive while the release is in
// flight; the session mutex keeps the pointer-following fields and the
// lifecycle phase consistent across that overlap. event, duration, viewDate
// and zones are fixed at grab time and read without it.
type Session struct {
	event    events.Event
	duration int // whole hours, >= 1
	viewDate time.Time
	zones    []Zone

	mu     sync.RWMutex
	active *Zone
	ghost  Ghost
	state  State
}

// Begin captures the dragged event's duration (hour-only, clamped up to one
// hour), derives the drop-zone grid from the current viewport and enters the
// dragging state.
func Begin(event events.Event, viewDate time.Time, vp Viewport) (*Session, error) {
	startHour, err := timeutil.ClockHour(event.StartTime)
	if err != nil {
		return nil, err
	}
	endHour, err := timeutil.ClockHour(event.EndTime)
	if err != nil {
		return nil, err
	}
	duration := endHour - startHour
	if duration < 1 {
		duration = 1
	}

	return &Session{
		event:    event,
		duration: duration,
		viewDate: viewDate,
		zones:    BuildGrid(vp),
		ghost:    Ghost{Width: ghostWidth, Height: HourHeight * float64(duration)},
		state:    StateDragging,
	}, nil
}

// Track moves the ghost to the pointer and re-resolves the hovered zone.
// Pure geometry, no transition. A track losing the race against the release
// fails with ErrNotDragging instead of moving a ghost nobody renders.
func (s *Session) Track(x, y float64) (*Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDragging {
		return nil, ErrNotDragging
	}
	s.ghost.X = x - s.ghost.Width/2
	s.ghost.Y = y - 20
	s.active = FindZone(s.zones, x, y)
	return s.active, nil
}

// beginCommit moves the session from dragging to committing, rejecting the
// transition from any other phase. Once it succeeds no further track can
// touch the session.
func (s *Session) beginCommit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDragging {
		return ErrNotDragging
	}
	s.state = StateCommitting
	return nil
}

// Resolve computes the commit target for a release at the given point. ok is
// false when the pointer is over no zone, which aborts the gesture. The end
// hour is clamped to 23; a long event dropped late in the day silently
// shrinks.
func (s *Session) Resolve(x, y float64) (CommitTarget, bool) {
	zone := FindZone(s.zones, x, y)
	if zone == nil {
		return CommitTarget{}, false
	}
	endHour := zone.Hour + s.duration
	if endHour > 23 {
		endHour = 23
	}
	return CommitTarget{
		Date:      timeutil.WeekStart(s.viewDate).AddDate(0, 0, zone.DayIndex),
		StartTime: timeutil.FormatClock(zone.Hour, 0),
		EndTime:   timeutil.FormatClock(endHour, 0),
	}, true
}

// Event returns the in-flight event as captured at grab time.
func (s *Session) Event() events.Event { return s.event }

// Duration returns the captured whole-hour duration.
func (s *Session) Duration() int { return s.duration }

// ActiveZone returns the currently hovered zone, nil between zones.
func (s *Session) ActiveZone() *Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Ghost returns the current proxy rectangle.
func (s *Session) Ghost() Ghost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ghost
}

// Zones exposes the zone list for rendering drop indicators.
func (s *Session) Zones() []Zone { return s.zones }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
