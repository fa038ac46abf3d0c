package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"contest-ranking-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ProfileLoader fetches user profiles from a backing store (e.g., document DB).
type ProfileLoader interface {
	LoadProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// ProfileRepository caches profiles with TTL to avoid repeated store hits
// while rendering leaderboards.
type ProfileRepository struct {
	loader ProfileLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedProfile
}

type cachedProfile struct {
	profile   domain.Profile
	expiresAt time.Time
}

func NewProfileRepository(loader ProfileLoader, ttl time.Duration) *ProfileRepository {
	return &ProfileRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedProfile),
	}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if profile, ok := r.cached(userID); ok {
		return profile, nil
	}

	result, err, _ := r.sf.Do(userID, func() (interface{}, error) {
		if profile, ok := r.cached(userID); ok {
			return profile, nil
		}

		profile, err := r.loader.LoadProfile(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}

		r.mu.Lock()
		r.cache[userID] = cachedProfile{
			profile:   profile,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return result.(domain.Profile), nil
}

// Invalidate drops a cached profile, e.g. after a rename.
func (r *ProfileRepository) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *ProfileRepository) cached(userID string) (domain.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[userID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Profile{}, false
	}
	return entry.profile, true
}

func (r *ProfileRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticProfileLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticProfileLoader struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewStaticProfileLoader(profiles map[string]domain.Profile) *StaticProfileLoader {
	if profiles == nil {
		profiles = make(map[string]domain.Profile)
	}
	return &StaticProfileLoader{profiles: profiles}
}

func (l *StaticProfileLoader) LoadProfile(_ context.Context, userID string) (domain.Profile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if profile, ok := l.profiles[userID]; ok {
		return profile, nil
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

// Put adds or replaces a profile.
func (l *StaticProfileLoader) Put(profile domain.Profile) {
	l.mu.Lock()
	l.profiles[profile.UserID] = profile
	l.mu.Unlock()
}
