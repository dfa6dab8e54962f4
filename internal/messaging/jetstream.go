package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const activityStream = "ACTIVITY"

// EnsureStreams creates (or validates) the activity stream carrying
// cal.activity.> subjects.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(activityStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			_, addErr := js.AddStream(&nats.StreamConfig{
				Name:      activityStream,
				Subjects:  []string{"cal.activity.>"},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			})
			return addErr
		}
		return err
	}
	return nil
}
