package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of activity partitions. Activity volume is
// per-user and modest, so 256 is plenty.
const ShardCount = 256

// GetShardID calculates the deterministic shard for a user id.
func GetShardID(userID string) int {
	checksum := crc32.ChecksumIEEE([]byte(userID))
	return int(checksum % ShardCount)
}

// ActivitySubject returns the NATS subject an activity record for the user
// is published on. Format: cal.activity.{shard_id}.user.{user_id}
func ActivitySubject(userID string) string {
	return fmt.Sprintf("cal.activity.%d.user.%s", GetShardID(userID), userID)
}
