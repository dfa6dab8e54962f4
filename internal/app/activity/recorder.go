package activity

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nuid"

	"github.com/flowcal/project/internal/contracts"
	"github.com/flowcal/project/internal/platform/metrics"
	"github.com/flowcal/project/internal/platform/natsutil"
	"github.com/flowcal/project/internal/sharding"
)

// Recorder publishes activity records to JetStream. Publishing is
// best-effort: a failed publish is logged and never blocks the request
// that produced it.
type Recorder struct {
	Publisher natsutil.Publisher
	NewID     func() string
	Now       func() time.Time
}

func NewRecorder(publisher natsutil.Publisher) *Recorder {
	return &Recorder{
		Publisher: publisher,
		NewID:     nuid.Next,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) Record(userID, activityType string, details any) {
	if r == nil || r.Publisher == nil {
		return
	}

	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			log.Printf("activity: marshal details for %s: %v", activityType, err)
		} else {
			raw = b
		}
	}

	record := contracts.ActivityRecord{
		RecordID:     r.NewID(),
		UserID:       userID,
		ActivityType: activityType,
		Details:      raw,
		OccurredAt:   r.Now(),
		ShardID:      sharding.GetShardID(userID),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("activity: marshal record %s: %v", record.RecordID, err)
		return
	}

	subject := sharding.ActivitySubject(userID)
	if err := r.Publisher.Publish(subject, payload); err != nil {
		log.Printf("activity: publish %s to %s: %v", record.RecordID, subject, err)
		return
	}
	metrics.TrackActivityRecord("published")
}
