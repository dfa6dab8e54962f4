package activity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/flowcal/project/internal/contracts"
)

var ErrInvalidRecordPayload = errors.New("invalid activity record payload")

type Repository interface {
	InsertRecord(ctx context.Context, record contracts.ActivityRecord, streamSeq uint64) error
	RecentForUser(ctx context.Context, userID string, limit int) ([]contracts.ActivityRecord, error)
}

// Service is the sink side: it decodes raw JetStream payloads and hands
// them to the repository.
type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, streamSeq uint64) error {
	var record contracts.ActivityRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return ErrInvalidRecordPayload
	}
	if record.RecordID == "" || record.UserID == "" || record.ActivityType == "" {
		return ErrInvalidRecordPayload
	}
	return s.Repository.InsertRecord(ctx, record, streamSeq)
}
