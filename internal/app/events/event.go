package events

import (
	"errors"
	"math/rand"
	"time"

	"github.com/flowcal/project/internal/timeutil"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidTimes  = errors.New("end time must be after start time")
)

// DefaultColor is assigned when a caller supplies no color at all.
const DefaultColor = "bg-blue-500"

// Palette is the fixed set of event color tags the UI knows how to render.
var Palette = []string{
	"bg-blue-500",
	"bg-green-500",
	"bg-purple-500",
	"bg-yellow-500",
	"bg-pink-500",
	"bg-indigo-500",
	"bg-teal-500",
	"bg-orange-500",
}

// RandomColor draws one tag from the palette.
func RandomColor() string {
	return Palette[rand.Intn(len(Palette))]
}

// InPalette reports whether color is one of the known tags.
func InPalette(color string) bool {
	for _, c := range Palette {
		if c == color {
			return true
		}
	}
	return false
}

// Event is a single titled, timed calendar entry owned by one user.
// Date carries the calendar day; StartTime/EndTime carry the "HH:MM"
// wall-clock times and are combined with Date before persistence.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	Color       string    `json:"color"`
	Organizer   string    `json:"organizer"`
}

// Validate checks the invariants for a user-submitted event. Drag commits
// bypass this: the documented end-hour clamp may collapse start and end onto
// the same clock value.
func (e Event) Validate() error {
	if e.Title == "" {
		return ErrTitleRequired
	}
	start, err := timeutil.Combine(e.Date, e.StartTime)
	if err != nil {
		return err
	}
	end, err := timeutil.Combine(e.Date, e.EndTime)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return ErrInvalidTimes
	}
	return nil
}

// Normalize fills defaulted fields in place.
func (e *Event) Normalize() {
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	e.Date = timeutil.DateOnly(e.Date)
}
