package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	ev := Event{
		Title:     "Planning",
		StartTime: "09:00",
		EndTime:   "10:00",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
	}
	assert.NoError(t, ev.Validate())

	missingTitle := ev
	missingTitle.Title = ""
	assert.ErrorIs(t, missingTitle.Validate(), ErrTitleRequired)

	inverted := ev
	inverted.StartTime, inverted.EndTime = "10:00", "09:00"
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidTimes)

	zeroLength := ev
	zeroLength.EndTime = zeroLength.StartTime
	assert.ErrorIs(t, zeroLength.Validate(), ErrInvalidTimes)

	badClock := ev
	badClock.StartTime = "9am"
	assert.Error(t, badClock.Validate())
}

func TestRandomColorStaysInPalette(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.True(t, InPalette(RandomColor()))
	}
}

func TestNormalizeDefaults(t *testing.T) {
	ev := Event{Title: "x", Date: time.Date(2026, 3, 2, 16, 30, 0, 0, time.Local)}
	ev.Normalize()
	assert.Equal(t, DefaultColor, ev.Color)
	assert.NotNil(t, ev.Attendees)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local), ev.Date)
}
