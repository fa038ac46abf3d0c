package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ProfileLoader fetches profiles from the system of record.
type ProfileLoader interface {
	LoadProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// ProfileRepository caches profiles in Redis (hash per user) and falls back to
// a loader on cache miss. Layout: HSET profile:{userID} displayName avatar badgeCount
type ProfileRepository struct {
	client *redis.Client
	loader ProfileLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewProfileRepository(client *redis.Client, loader ProfileLoader, ttl time.Duration) *ProfileRepository {
	return &ProfileRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	key := r.key(userID)
	if fields, err := r.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
		return profileFromHash(userID, fields), nil
	}

	result, err, _ := r.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if fields, err := r.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
			return profileFromHash(userID, fields), nil
		}

		profile, err := r.loader.LoadProfile(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}

		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key,
			"displayName", profile.DisplayName,
			"avatar", profile.Avatar,
			"badgeCount", profile.BadgeCount)
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return profile, nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return result.(domain.Profile), nil
}

// Invalidate drops the cached hash so the next read reloads it.
func (r *ProfileRepository) Invalidate(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

func (r *ProfileRepository) key(userID string) string {
	return "profile:" + userID
}

func profileFromHash(userID string, fields map[string]string) domain.Profile {
	badges, _ := strconv.Atoi(fields["badgeCount"])
	return domain.Profile{
		UserID:      userID,
		DisplayName: fields["displayName"],
		Avatar:      fields["avatar"],
		BadgeCount:  badges,
	}
}

func (r *ProfileRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
