package contracts

import (
	"encoding/json"
	"time"
)

// ActivityRecord is the audit entry published by calendar-api and persisted
// by activity-sink. Details is a small free-form JSON object (event title,
// counts, page name and the like).
type ActivityRecord struct {
	RecordID     string          `json:"record_id"`
	UserID       string          `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	Details      json.RawMessage `json:"details,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
	ShardID      int             `json:"shard_id"`
}

// Activity types recorded by the calendar API.
const (
	ActivityPageVisit       = "page_visit"
	ActivityEventCreated    = "event_created"
	ActivityEventUpdated    = "event_updated"
	ActivityEventMoved      = "event_moved"
	ActivityEventDeleted    = "event_deleted"
	ActivityAIEventsCreated = "ai_events_created"
	ActivityAIEventsUpdated = "ai_events_updated"
	ActivityAIEventsDeleted = "ai_events_deleted"
	ActivityUserLogin       = "user_login"
	ActivityUserLogout      = "user_logout"
)
