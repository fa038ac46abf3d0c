package cli

import (
	"context"
	"fmt"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/config"
	"contest-ranking-service/internal/domain"
	"contest-ranking-service/internal/infra/archive"
	"contest-ranking-service/internal/infra/memory"
	"contest-ranking-service/internal/infra/postgres"
	redisinfra "contest-ranking-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// mirrorLockKey names the advisory lock whose holder owns the Redis mirror and
// the window archive.
const mirrorLockKey int64 = 0x72616e6b696e67

// engine is the assembled ranking service plus the handles start/rebuild need.
type engine struct {
	service *app.ContestService
	board   *app.Aggregator
	sink    *redisinfra.SnapshotSink
	durable bool
}

// buildEngine picks Postgres stores and a Redis cache when configured and
// in-memory ones otherwise. The returned func releases connections.
func buildEngine(ctx context.Context, cfg config.Config) (*engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, cleanup, err
	}

	var (
		contests       app.ContestStore       = memory.NewContestStore()
		participations app.ParticipationStore = memory.NewParticipationStore()
		ledgerStore    app.LedgerStore        = memory.NewLedgerStore()
		loader         memory.ProfileLoader   = memory.NewStaticProfileLoader(nil)
		leader         elector                = soleInstance{}
		durable        bool
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		contests = postgres.NewContestStore(pool)
		participations = postgres.NewParticipationStore(pool)
		ledgerStore = postgres.NewLedgerStore(pool)
		loader = postgres.NewProfileLoader(pool)
		lock := postgres.NewLeaderLock(pool, mirrorLockKey, 30*time.Second)
		closers = append(closers, func() { _ = lock.Release(context.Background()) })
		leader = lock
		durable = true
	} else {
		zap.L().Warn("postgres not configured, contests and scores live in memory only")
	}

	profileTTL := config.TTLDuration(cfg.Profiles.TTL, 10*time.Minute)
	var (
		profiles app.ProfileRepository = memory.NewProfileRepository(loader, profileTTL)
		sink     *redisinfra.SnapshotSink
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("ping redis: %w", err)
		}
		profiles = redisinfra.NewProfileRepository(client, loader, profileTTL)
		sink = redisinfra.NewSnapshotSink(client, config.TTLDuration(cfg.Redis.SnapshotTTL, 24*time.Hour))
	}

	opts := app.AggregatorOptions{
		Location:         loc,
		RetainVersions:   cfg.Leaderboard.RetainVersions,
		SubscriberBuffer: cfg.Leaderboard.SubscriberBuffer,
		SinkTopN:         cfg.Leaderboard.SinkTopN,
	}
	if sink != nil {
		opts.Sink = leaderSink{leader: leader, sink: sink}
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Prefix:          cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, cleanup, err
		}
		opts.Archiver = leaderArchiver{leader: leader, archiver: archiver}
	}

	ledger := app.NewScoreLedger(ledgerStore, 0)
	board := app.NewAggregator(ledger, profiles, opts)
	service := app.NewContestService(
		app.NewContestRegistry(contests, nil),
		app.NewParticipationTracker(participations, ledger, nil),
		ledger,
		board,
		nil,
	)
	return &engine{service: service, board: board, sink: sink, durable: durable}, cleanup, nil
}

func logLeaderboardSizes(ctx context.Context, board *app.Aggregator) {
	for _, kind := range domain.WindowKinds() {
		lb, err := board.Snapshot(ctx, kind, 0, 0)
		if err != nil {
			continue
		}
		zap.L().Info("leaderboard ready",
			zap.String("window", string(kind)),
			zap.Int("users", lb.TotalCount),
			zap.Uint64("version", lb.Version))
	}
}

// elector reports whether this process currently owns the shared mirror.
type elector interface {
	Acquire(ctx context.Context) (bool, error)
}

// soleInstance owns the mirror unconditionally; in-memory stores mean one process.
type soleInstance struct{}

func (soleInstance) Acquire(context.Context) (bool, error) { return true, nil }

func leads(ctx context.Context, leader elector) bool {
	ok, err := leader.Acquire(ctx)
	if err != nil {
		zap.L().Warn("mirror leadership check failed", zap.Error(err))
		return false
	}
	return ok
}

// leaderSink mirrors snapshots only from the instance holding the lock. Every
// instance numbers versions on its own, so a single writer keeps the mirrored
// version moving forward.
type leaderSink struct {
	leader elector
	sink   app.SnapshotSink
}

func (s leaderSink) PublishSnapshot(ctx context.Context, lb domain.Leaderboard) error {
	if !leads(ctx, s.leader) {
		return nil
	}
	return s.sink.PublishSnapshot(ctx, lb)
}

type leaderArchiver struct {
	leader   elector
	archiver app.SnapshotArchiver
}

func (a leaderArchiver) ArchiveSnapshot(ctx context.Context, lb domain.Leaderboard) error {
	if !leads(ctx, a.leader) {
		return nil
	}
	return a.archiver.ArchiveSnapshot(ctx, lb)
}
