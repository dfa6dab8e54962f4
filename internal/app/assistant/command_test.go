package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

func TestParseCommandAdd(t *testing.T) {
	payload := `{"events":[{"title":"Team meeting","startTime":"14:00","endTime":"15:00","day":3,"location":"Room 2"}]}`
	cmd, err := ParseCommand(ToolAddEvents, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, KindAdd, cmd.Kind)
	require.Len(t, cmd.Add, 1)
	assert.Equal(t, "Team meeting", cmd.Add[0].Title)
	assert.Equal(t, 3, cmd.Add[0].Day)
}

func TestParseCommandUpdate(t *testing.T) {
	payload := `{"events":[{"id":"ev-1","startTime":"10:00"}]}`
	cmd, err := ParseCommand(ToolUpdateEvents, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, cmd.Kind)
	require.Len(t, cmd.Update, 1)
	require.NotNil(t, cmd.Update[0].StartTime)
	assert.Equal(t, "10:00", *cmd.Update[0].StartTime)
	assert.Nil(t, cmd.Update[0].Title)
	assert.Nil(t, cmd.Update[0].EndTime)
}

func TestParseCommandDelete(t *testing.T) {
	cmd, err := ParseCommand(ToolDeleteEvents, []byte(`{"eventIds":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, KindDelete, cmd.Kind)
	assert.Equal(t, []string{"a", "b"}, cmd.Delete)
}

func TestParseCommandUnknownTool(t *testing.T) {
	_, err := ParseCommand("archiveCalendarEvents", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestParseCommandMalformedPayload(t *testing.T) {
	_, err := ParseCommand(ToolAddEvents, []byte(`{"events": 17}`))
	assert.Error(t, err)
}

func TestAddEntryValid(t *testing.T) {
	complete := AddEntry{Title: "A", StartTime: "09:00", EndTime: "10:00", Day: 2}
	assert.True(t, complete.Valid())

	for name, entry := range map[string]AddEntry{
		"missing title": {StartTime: "09:00", EndTime: "10:00", Day: 2},
		"missing start": {Title: "A", EndTime: "10:00", Day: 2},
		"missing end":   {Title: "A", StartTime: "09:00", Day: 2},
		"missing day":   {Title: "A", StartTime: "09:00", EndTime: "10:00"},
	} {
		assert.False(t, entry.Valid(), name)
	}
}

func TestAddEntryEventDefaults(t *testing.T) {
	current := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)
	entry := AddEntry{Title: "Lunch", StartTime: "12:30", EndTime: "13:30", Day: 2}

	ev := entry.Event(current)
	assert.Equal(t, timeutil.ResolveDay(current, 2), ev.Date)
	assert.Equal(t, "TBD", ev.Location)
	assert.Equal(t, []string{}, ev.Attendees)
	assert.Empty(t, ev.Color, "color assignment belongs to the reconciler")
}

func TestUpdateEntryMergeKeepsOmittedFields(t *testing.T) {
	current := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)
	existing := events.Event{
		ID:        "ev-1",
		Title:     "Standup",
		StartTime: "09:00",
		EndTime:   "09:15",
		Location:  "Room A",
		Date:      timeutil.DateOnly(current),
		Color:     "bg-green-500",
	}

	newStart := "10:00"
	merged := UpdateEntry{ID: "ev-1", StartTime: &newStart}.Merge(existing, current)

	assert.Equal(t, "Standup", merged.Title)
	assert.Equal(t, "10:00", merged.StartTime)
	assert.Equal(t, "09:15", merged.EndTime)
	assert.Equal(t, "Room A", merged.Location)
	assert.Equal(t, existing.Date, merged.Date)
	assert.Equal(t, "bg-green-500", merged.Color)
}

func TestUpdateEntryMergeDayBeatsDate(t *testing.T) {
	current := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)
	existing := events.Event{ID: "ev-1", Date: timeutil.DateOnly(current)}

	day := 6
	date := "2026-03-20"
	merged := UpdateEntry{ID: "ev-1", Day: &day, Date: &date}.Merge(existing, current)
	assert.Equal(t, timeutil.ResolveDay(current, 6), merged.Date)

	merged = UpdateEntry{ID: "ev-1", Date: &date}.Merge(existing, current)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.Local), merged.Date)

	merged = UpdateEntry{ID: "ev-1"}.Merge(existing, current)
	assert.Equal(t, existing.Date, merged.Date, "neither day nor date keeps the existing date")
}
