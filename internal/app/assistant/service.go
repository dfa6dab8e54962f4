package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

// ChatResponse is the contract returned to the chat UI. At most one of the
// events* triads is populated per response; a plain conversational reply
// populates none.
type ChatResponse struct {
	Message         string         `json:"message"`
	EventsAdded     bool           `json:"eventsAdded,omitempty"`
	EventsData      []AddEntry     `json:"eventsData,omitempty"`
	EventCount      int            `json:"eventCount,omitempty"`
	EventsUpdated   bool           `json:"eventsUpdated,omitempty"`
	UpdatedEvents   []events.Event `json:"updatedEvents,omitempty"`
	EventsDeleted   bool           `json:"eventsDeleted,omitempty"`
	DeletedEventIds []string       `json:"deletedEventIds,omitempty"`
}

// Service runs one assistant turn end to end: interpret the transcript,
// apply the resulting command through the reconciler, word the reply.
type Service struct {
	Interpreter Interpreter
	Reconciler  *Reconciler
	Logger      *slog.Logger
}

func NewService(interpreter Interpreter, reconciler *Reconciler) *Service {
	return &Service{
		Interpreter: interpreter,
		Reconciler:  reconciler,
		Logger:      slog.Default().With("component", "assistant"),
	}
}

func (s *Service) HandleTurn(ctx context.Context, userID string, store *events.Store, current time.Time, transcript []Message) (ChatResponse, error) {
	interp, err := s.Interpreter.Interpret(ctx, transcript, current, SummarizeEvents(store.Snapshot()))
	if err != nil {
		return ChatResponse{}, err
	}
	if interp.Command == nil {
		return ChatResponse{Message: interp.Text}, nil
	}

	cmd := *interp.Command
	switch cmd.Kind {
	case KindAdd:
		added, err := s.Reconciler.ApplyAdd(ctx, userID, store, current, cmd.Add)
		if err != nil {
			return ChatResponse{}, err
		}
		return ChatResponse{
			Message:     addConfirmation(added),
			EventsAdded: true,
			EventsData:  added,
			EventCount:  len(added),
		}, nil

	case KindUpdate:
		updated, err := s.Reconciler.ApplyUpdate(ctx, userID, store, current, cmd.Update)
		if err != nil {
			return ChatResponse{}, err
		}
		return ChatResponse{
			Message:       updateConfirmation(updated),
			EventsUpdated: true,
			UpdatedEvents: updated,
			EventCount:    len(updated),
		}, nil

	case KindDelete:
		deleted, err := s.Reconciler.ApplyDelete(ctx, userID, store, cmd.Delete)
		if err != nil {
			return ChatResponse{}, err
		}
		return ChatResponse{
			Message:         deleteConfirmation(deleted),
			EventsDeleted:   true,
			DeletedEventIds: deleted,
			EventCount:      len(deleted),
		}, nil

	default:
		return ChatResponse{}, fmt.Errorf("%w: %q", ErrUnknownTool, cmd.Kind)
	}
}

// SummarizeEvents renders the store as one line per event for the
// interpreter's system prompt.
func SummarizeEvents(list []events.Event) string {
	if len(list) == 0 {
		return "(no events scheduled)"
	}
	var sb strings.Builder
	for _, e := range list {
		fmt.Fprintf(&sb, "- id=%s %q on %s %s-%s", e.ID, e.Title, e.Date.Format("Monday 2006-01-02"), e.StartTime, e.EndTime)
		if e.Location != "" && e.Location != "TBD" {
			fmt.Fprintf(&sb, " at %s", e.Location)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func addConfirmation(added []AddEntry) string {
	if len(added) == 1 {
		e := added[0]
		return fmt.Sprintf("Perfect! I've added %q to your calendar for %s at %s-%s.",
			e.Title, timeutil.DayName(e.Day), e.StartTime, e.EndTime)
	}
	return fmt.Sprintf("Great! I've added %d events to your calendar: %s. All events have been scheduled successfully!",
		len(added), quotedTitles(added))
}

func updateConfirmation(updated []events.Event) string {
	if len(updated) == 0 {
		return "I couldn't find the events you wanted to change. Could you double-check which ones you meant?"
	}
	titles := make([]string, len(updated))
	for i, e := range updated {
		titles[i] = fmt.Sprintf("%q", e.Title)
	}
	if len(updated) == 1 {
		return fmt.Sprintf("Done! I've updated %s on your calendar.", titles[0])
	}
	return fmt.Sprintf("Done! I've updated %d events: %s.", len(updated), strings.Join(titles, ", "))
}

func deleteConfirmation(deleted []string) string {
	switch len(deleted) {
	case 0:
		return "I couldn't delete those events. Could you double-check which ones you meant?"
	case 1:
		return "Done! I've removed that event from your calendar."
	default:
		return fmt.Sprintf("Done! I've removed %d events from your calendar.", len(deleted))
	}
}

func quotedTitles(entries []AddEntry) string {
	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = fmt.Sprintf("%q", e.Title)
	}
	return strings.Join(titles, ", ")
}
