package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcal/project/internal/contracts"
)

const createActivityLogTableSQL = `
CREATE TABLE IF NOT EXISTS user_activity_log (
  record_id text PRIMARY KEY,
  user_id text NOT NULL,
  activity_type text NOT NULL,
  details jsonb,
  shard_id integer NOT NULL,
  stream_seq bigint NOT NULL,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createActivityLogUserIdxSQL = `
CREATE INDEX IF NOT EXISTS user_activity_log_user_idx
ON user_activity_log (user_id, occurred_at DESC)`

const insertRecordSQL = `
INSERT INTO user_activity_log (
  record_id, user_id, activity_type, details, shard_id, stream_seq, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (record_id) DO NOTHING
`

const recentForUserSQL = `
SELECT record_id, user_id, activity_type, COALESCE(details, 'null'::jsonb), shard_id, occurred_at
FROM user_activity_log
WHERE user_id = $1
ORDER BY occurred_at DESC
LIMIT $2
`

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createActivityLogTableSQL); err != nil {
		return fmt.Errorf("ensure activity schema: %w", err)
	}
	if _, err := r.Pool.Exec(ctx, createActivityLogUserIdxSQL); err != nil {
		return fmt.Errorf("ensure activity index: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertRecord(ctx context.Context, record contracts.ActivityRecord, streamSeq uint64) error {
	var details any
	if len(record.Details) > 0 {
		details = []byte(record.Details)
	}
	_, err := r.Pool.Exec(ctx, insertRecordSQL,
		record.RecordID,
		record.UserID,
		record.ActivityType,
		details,
		record.ShardID,
		int64(streamSeq),
		record.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecentForUser(ctx context.Context, userID string, limit int) ([]contracts.ActivityRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.Pool.Query(ctx, recentForUserSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	records := make([]contracts.ActivityRecord, 0, limit)
	for rows.Next() {
		var rec contracts.ActivityRecord
		var details []byte
		if err := rows.Scan(&rec.RecordID, &rec.UserID, &rec.ActivityType, &details, &rec.ShardID, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		if string(details) != "null" {
			rec.Details = details
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
