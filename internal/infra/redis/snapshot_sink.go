package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotSink mirrors each leaderboard version to Redis so other instances
// and dashboards can read it without touching this process:
//
//	SET     leaderboard:{window}:latest <json> EX ttl
//	PUBLISH leaderboard:{window}        <json>
type SnapshotSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotSink(client *redis.Client, ttl time.Duration) *SnapshotSink {
	return &SnapshotSink{client: client, ttl: ttl}
}

func (s *SnapshotSink) PublishSnapshot(ctx context.Context, lb domain.Leaderboard) error {
	payload, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, LatestKey(lb.Window), payload, s.ttl)
	pipe.Publish(ctx, Channel(lb.Window), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror leaderboard: %w", err)
	}
	return nil
}

// LatestSnapshot reads the last mirrored version; ok is false when none is stored.
func (s *SnapshotSink) LatestSnapshot(ctx context.Context, window domain.WindowKind) (lb domain.Leaderboard, ok bool, err error) {
	raw, err := s.client.Get(ctx, LatestKey(window)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, err
	}
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	return lb, true, nil
}

// LatestKey is where the newest snapshot of a window lives.
func LatestKey(window domain.WindowKind) string {
	return "leaderboard:" + string(window) + ":latest"
}

// Channel is the pub/sub channel carrying every snapshot of a window.
func Channel(window domain.WindowKind) string {
	return "leaderboard:" + string(window)
}
