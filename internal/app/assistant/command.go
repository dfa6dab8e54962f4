package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

// Tool names the interpreter may return. Only the first tool call of a turn
// is acted on.
const (
	ToolAddEvents    = "addCalendarEvents"
	ToolUpdateEvents = "updateCalendarEvents"
	ToolDeleteEvents = "deleteCalendarEvents"
)

var ErrUnknownTool = errors.New("unknown tool name")

// Kind tags the command union.
type Kind string

const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// AddEntry is one event the interpreter asked to create. Day is 1-indexed
// starting Sunday.
type AddEntry struct {
	Title       string   `json:"title"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Day         int      `json:"day"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Color       string   `json:"color,omitempty"`
}

// Valid reports whether the entry carries every required field. Invalid
// entries are dropped from a batch, not reported individually.
func (e AddEntry) Valid() bool {
	return e.Title != "" && e.StartTime != "" && e.EndTime != "" && e.Day != 0
}

// UpdateEntry is a partial update of one existing event. Nil fields keep the
// event's current value; Day takes precedence over Date when both are set.
type UpdateEntry struct {
	ID          string   `json:"id"`
	Title       *string  `json:"title,omitempty"`
	StartTime   *string  `json:"startTime,omitempty"`
	EndTime     *string  `json:"endTime,omitempty"`
	Day         *int     `json:"day,omitempty"`
	Date        *string  `json:"date,omitempty"` // YYYY-MM-DD
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Color       *string  `json:"color,omitempty"`
}

// Command is the validated tagged union of the three batch shapes.
type Command struct {
	Kind   Kind
	Add    []AddEntry
	Update []UpdateEntry
	Delete []string
}

type addArguments struct {
	Events []AddEntry `json:"events"`
}

type updateArguments struct {
	Events []UpdateEntry `json:"events"`
}

type deleteArguments struct {
	EventIDs []string `json:"eventIds"`
}

// ParseCommand decodes a tool call's argument payload into a Command,
// validating shape at the boundary instead of trusting it at every call
// site.
func ParseCommand(tool string, arguments []byte) (Command, error) {
	switch tool {
	case ToolAddEvents:
		var args addArguments
		if err := json.Unmarshal(arguments, &args); err != nil {
			return Command{}, fmt.Errorf("decode %s arguments: %w", tool, err)
		}
		return Command{Kind: KindAdd, Add: args.Events}, nil
	case ToolUpdateEvents:
		var args updateArguments
		if err := json.Unmarshal(arguments, &args); err != nil {
			return Command{}, fmt.Errorf("decode %s arguments: %w", tool, err)
		}
		return Command{Kind: KindUpdate, Update: args.Events}, nil
	case ToolDeleteEvents:
		var args deleteArguments
		if err := json.Unmarshal(arguments, &args); err != nil {
			return Command{}, fmt.Errorf("decode %s arguments: %w", tool, err)
		}
		return Command{Kind: KindDelete, Delete: args.EventIDs}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
}

// Event materializes the entry as a calendar event in the week containing
// current. Location falls back to "TBD" and attendees to an empty list.
func (e AddEntry) Event(current time.Time) events.Event {
	location := e.Location
	if location == "" {
		location = "TBD"
	}
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return events.Event{
		Title:       e.Title,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Date:        timeutil.ResolveDay(current, e.Day),
		Description: e.Description,
		Location:    location,
		Attendees:   attendees,
		Color:       e.Color,
	}
}

// Merge applies the entry's present fields onto the existing event,
// field by field. The id never changes.
func (e UpdateEntry) Merge(existing events.Event, current time.Time) events.Event {
	merged := existing
	if e.Title != nil {
		merged.Title = *e.Title
	}
	if e.StartTime != nil {
		merged.StartTime = *e.StartTime
	}
	if e.EndTime != nil {
		merged.EndTime = *e.EndTime
	}
	if e.Description != nil {
		merged.Description = *e.Description
	}
	if e.Location != nil {
		merged.Location = *e.Location
	}
	if e.Color != nil {
		merged.Color = *e.Color
	}
	if e.Attendees != nil {
		merged.Attendees = e.Attendees
	}
	switch {
	case e.Day != nil:
		merged.Date = timeutil.ResolveDay(current, *e.Day)
	case e.Date != nil:
		if parsed, err := time.ParseInLocation(time.DateOnly, *e.Date, current.Location()); err == nil {
			merged.Date = parsed
		}
	}
	return merged
}
