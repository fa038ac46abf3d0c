package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"contest-ranking-service/internal/domain"
	"go.uber.org/zap"
)

// AggregatorOptions tunes the leaderboard aggregator. Zero values fall back to defaults.
type AggregatorOptions struct {
	// Location defines calendar week and month boundaries.
	Location *time.Location
	// RetainVersions is how many past snapshot versions stay readable for paging.
	RetainVersions int
	// SubscriberBuffer is the channel capacity handed to each subscriber.
	SubscriberBuffer int
	// SinkTopN is how many rows are mirrored to the Sink on each version.
	SinkTopN int
	Sink     SnapshotSink
	Archiver SnapshotArchiver
	Now      func() time.Time
}

// Aggregator maintains one ranked, versioned view per window kind. Each
// window has a single writer at a time and fans out versions in order.
type Aggregator struct {
	ledger   *ScoreLedger
	profiles ProfileRepository
	opts     AggregatorOptions
	now      func() time.Time
	boards   map[domain.WindowKind]*board
}

type standing struct {
	total     int
	reachedAt time.Time
}

type board struct {
	kind domain.WindowKind

	// mu serializes writers: apply, rebuild and rollover.
	mu        sync.Mutex
	window    domain.Window
	standings map[string]standing
	seen      *seqSet
	// settled is the last sequence number the previous catch-up pass read.
	settled int64
	version uint64

	current atomic.Pointer[snapshot]

	histMu  sync.RWMutex
	history []*snapshot

	// fanMu orders fan-out by version; it is taken before mu is released.
	fanMu       sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch          chan domain.Leaderboard
	topN        int
	lastVersion uint64
}

func NewAggregator(ledger *ScoreLedger, profiles ProfileRepository, opts AggregatorOptions) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RetainVersions <= 0 {
		opts.RetainVersions = 16
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 8
	}
	if opts.SinkTopN <= 0 {
		opts.SinkTopN = 100
	}
	a := &Aggregator{
		ledger:   ledger,
		profiles: profiles,
		opts:     opts,
		now:      clockOrDefault(opts.Now),
		boards:   make(map[domain.WindowKind]*board),
	}
	now := a.now()
	for _, kind := range domain.WindowKinds() {
		b := &board{
			kind:        kind,
			window:      domain.WindowAt(kind, now, opts.Location),
			standings:   make(map[string]standing),
			seen:        newSeqSet(),
			subscribers: make(map[*subscriber]struct{}),
		}
		b.current.Store(&snapshot{window: b.window, publishedAt: now})
		a.boards[kind] = b
	}
	return a
}

func (a *Aggregator) board(kind domain.WindowKind) (*board, error) {
	b, ok := a.boards[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWindow, kind)
	}
	return b, nil
}

// Apply folds one ledger event into every window it qualifies for. Events
// already applied (by Seq) are ignored, so replays never double-count.
func (a *Aggregator) Apply(ctx context.Context, ev domain.ScoreEvent) error {
	for _, kind := range domain.WindowKinds() {
		if err := a.apply(ctx, a.boards[kind], ev); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) apply(ctx context.Context, b *board, ev domain.ScoreEvent) error {
	b.mu.Lock()
	rolled := false
	if b.window.Expired(a.now()) {
		if err := a.rolloverLocked(ctx, b); err != nil {
			b.mu.Unlock()
			return err
		}
		rolled = true
	}
	if b.seen.has(ev.Seq) || !b.window.Contains(ev.OccurredAt) {
		if !rolled {
			b.mu.Unlock()
			return nil
		}
		snap := b.current.Load()
		b.fanMu.Lock()
		b.mu.Unlock()
		a.fanOut(ctx, b, snap)
		b.fanMu.Unlock()
		return nil
	}
	b.seen.add(ev.Seq)

	prev, existed := b.standings[ev.UserID]
	next := standing{total: prev.total + ev.Points, reachedAt: prev.reachedAt}
	if ev.OccurredAt.After(next.reachedAt) {
		next.reachedAt = ev.OccurredAt
	}
	b.standings[ev.UserID] = next

	cur := b.current.Load()
	rows := make([]row, len(cur.rows), len(cur.rows)+1)
	copy(rows, cur.rows)

	lo, hi := 0, 0
	if existed {
		old := searchRow(rows, row{UserID: ev.UserID, Total: prev.total, ReachedAt: prev.reachedAt})
		if old >= len(rows) || rows[old].UserID != ev.UserID {
			old = indexOfUser(rows, ev.UserID)
		}
		rows = append(rows[:old], rows[old+1:]...)
		lo, hi = old, old
	}
	moved := row{UserID: ev.UserID, Total: next.total, ReachedAt: next.reachedAt}
	pos := searchRow(rows, moved)
	rows = append(rows, row{})
	copy(rows[pos+1:], rows[pos:])
	rows[pos] = moved

	if !existed {
		// Everyone below the new row shifts down one place.
		lo, hi = pos, len(rows)-1
	} else {
		if pos < lo {
			lo = pos
		}
		if pos > hi {
			hi = pos
		}
	}
	assignRanks(rows, lo, hi)

	snap := a.publishLocked(b, rows)
	b.fanMu.Lock()
	b.mu.Unlock()
	a.fanOut(ctx, b, snap)
	b.fanMu.Unlock()
	return nil
}

// publishLocked stores rows as the next version. Caller holds b.mu.
func (a *Aggregator) publishLocked(b *board, rows []row) *snapshot {
	b.version++
	snap := &snapshot{
		version:     b.version,
		window:      b.window,
		rows:        rows,
		publishedAt: a.now(),
	}
	b.current.Store(snap)

	b.histMu.Lock()
	b.history = append(b.history, snap)
	if extra := len(b.history) - a.opts.RetainVersions; extra > 0 {
		b.history = append([]*snapshot(nil), b.history[extra:]...)
	}
	b.histMu.Unlock()
	return snap
}

// Rebuild recomputes a window from the ledger for the window containing now.
func (a *Aggregator) Rebuild(ctx context.Context, kind domain.WindowKind) error {
	b, err := a.board(kind)
	if err != nil {
		return err
	}
	b.mu.Lock()
	snap, err := a.rebuildLocked(ctx, b, domain.WindowAt(kind, a.now(), a.opts.Location))
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.fanMu.Lock()
	b.mu.Unlock()
	a.fanOut(ctx, b, snap)
	b.fanMu.Unlock()
	return nil
}

// RebuildAll warms every window from the ledger.
func (a *Aggregator) RebuildAll(ctx context.Context) error {
	for _, kind := range domain.WindowKinds() {
		if err := a.Rebuild(ctx, kind); err != nil {
			return fmt.Errorf("rebuild %s leaderboard: %w", kind, err)
		}
	}
	return nil
}

func (a *Aggregator) rebuildLocked(ctx context.Context, b *board, w domain.Window) (*snapshot, error) {
	standings := make(map[string]standing)
	seen := newSeqSet()
	it := a.ledger.Scan(w)
	for it.Next(ctx) {
		ev := it.Event()
		if seen.has(ev.Seq) || !w.Contains(ev.OccurredAt) {
			continue
		}
		seen.add(ev.Seq)
		s := standings[ev.UserID]
		s.total += ev.Points
		if ev.OccurredAt.After(s.reachedAt) {
			s.reachedAt = ev.OccurredAt
		}
		standings[ev.UserID] = s
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}

	rows := make([]row, 0, len(standings))
	for userID, s := range standings {
		rows = append(rows, row{UserID: userID, Total: s.total, ReachedAt: s.reachedAt})
	}
	sortAndRank(rows)

	b.window = w
	b.standings = standings
	b.seen = seen
	b.settled = 0
	return a.publishLocked(b, rows), nil
}

// Rollover rebuilds every bounded window whose period has ended.
func (a *Aggregator) Rollover(ctx context.Context) error {
	for _, kind := range domain.WindowKinds() {
		b := a.boards[kind]
		b.mu.Lock()
		if !b.window.Expired(a.now()) {
			b.mu.Unlock()
			continue
		}
		if err := a.rolloverLocked(ctx, b); err != nil {
			b.mu.Unlock()
			return err
		}
		snap := b.current.Load()
		b.fanMu.Lock()
		b.mu.Unlock()
		a.fanOut(ctx, b, snap)
		b.fanMu.Unlock()
	}
	return nil
}

// rolloverLocked archives the closing window and rebuilds the current one.
func (a *Aggregator) rolloverLocked(ctx context.Context, b *board) error {
	closing := b.current.Load()
	next := domain.WindowAt(b.kind, a.now(), a.opts.Location)
	if a.opts.Archiver != nil && len(closing.rows) > 0 {
		final := a.render(ctx, b.kind, closing, 0, len(closing.rows))
		if err := a.opts.Archiver.ArchiveSnapshot(ctx, final); err != nil {
			zap.L().Warn("archive leaderboard window failed",
				zap.String("window", string(b.kind)),
				zap.Time("windowStart", closing.window.Start),
				zap.Error(err))
		}
	}
	if _, err := a.rebuildLocked(ctx, b, next); err != nil {
		return err
	}
	zap.L().Info("leaderboard window rolled over",
		zap.String("window", string(b.kind)),
		zap.Time("windowStart", next.Start),
		zap.Time("windowEnd", next.End))
	return nil
}

// CatchUp applies ledger events this process has not seen, such as those
// appended by other instances, and lets each window's applied-set forget
// sequence numbers it no longer needs. A hole in the sequence that was already
// a hole on the previous pass is taken to be a number that was never committed.
func (a *Aggregator) CatchUp(ctx context.Context) error {
	for _, kind := range domain.WindowKinds() {
		if err := a.catchUp(ctx, a.boards[kind]); err != nil {
			return fmt.Errorf("catch up %s leaderboard: %w", kind, err)
		}
	}
	return nil
}

func (a *Aggregator) catchUp(ctx context.Context, b *board) error {
	b.mu.Lock()
	w, floor, settled := b.window, b.seen.floor, b.settled
	b.mu.Unlock()

	last := floor
	it := a.ledger.scanAfter(w, floor)
	for it.Next(ctx) {
		ev := it.Event()
		last = ev.Seq
		b.mu.Lock()
		if b.window != w {
			// Rolled over underneath us; the rebuild already read the ledger.
			b.mu.Unlock()
			return nil
		}
		if ev.Seq <= settled {
			b.seen.skipTo(ev.Seq - 1)
		}
		b.mu.Unlock()
		if err := a.apply(ctx, b, ev); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("scan ledger: %w", err)
	}

	b.mu.Lock()
	if b.window == w && last > b.settled {
		b.settled = last
	}
	b.mu.Unlock()
	return nil
}

// Run checks for window rollover every interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Rollover(ctx); err != nil {
				zap.L().Error("leaderboard rollover failed", zap.Error(err))
			}
			if err := a.CatchUp(ctx); err != nil {
				zap.L().Error("leaderboard catch-up failed", zap.Error(err))
			}
		}
	}
}

// Snapshot returns rows [offset, offset+limit) of the current version.
func (a *Aggregator) Snapshot(ctx context.Context, kind domain.WindowKind, offset, limit int) (domain.Leaderboard, error) {
	return a.SnapshotAt(ctx, kind, 0, offset, limit)
}

// SnapshotAt serves a page from a pinned version so consecutive pages agree.
// Version 0 means the current one; versions no longer retained yield
// domain.ErrSnapshotExpired.
func (a *Aggregator) SnapshotAt(ctx context.Context, kind domain.WindowKind, version uint64, offset, limit int) (domain.Leaderboard, error) {
	b, err := a.board(kind)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	snap := b.current.Load()
	if version != 0 && version != snap.version {
		snap = b.lookup(version)
		if snap == nil {
			return domain.Leaderboard{}, fmt.Errorf("%w: version %d", domain.ErrSnapshotExpired, version)
		}
	}
	return a.render(ctx, kind, snap, offset, limit), nil
}

func (b *board) lookup(version uint64) *snapshot {
	b.histMu.RLock()
	defer b.histMu.RUnlock()
	for _, s := range b.history {
		if s.version == version {
			return s
		}
	}
	return nil
}

// RankOf returns the user's rank in the current version; ok is false when the
// user has no qualifying events in the window.
func (a *Aggregator) RankOf(kind domain.WindowKind, userID string) (rank int, ok bool, err error) {
	b, err := a.board(kind)
	if err != nil {
		return 0, false, err
	}
	snap := b.current.Load()
	i, ok := snap.position(userID)
	if !ok {
		return 0, false, nil
	}
	return snap.rows[i].Rank, true, nil
}

// Subscribe registers for whole top-N snapshots of a window. The current
// snapshot is delivered immediately. Slow readers lose stale snapshots rather
// than blocking writers. The caller must invoke cancel (or cancel ctx).
func (a *Aggregator) Subscribe(ctx context.Context, kind domain.WindowKind, topN int) (<-chan domain.Leaderboard, func(), error) {
	b, err := a.board(kind)
	if err != nil {
		return nil, nil, err
	}
	if topN <= 0 {
		topN = 10
	}
	sub := &subscriber{
		ch:   make(chan domain.Leaderboard, a.opts.SubscriberBuffer),
		topN: topN,
	}

	b.fanMu.Lock()
	snap := b.current.Load()
	sub.ch <- a.render(ctx, kind, snap, 0, topN)
	sub.lastVersion = snap.version
	b.subscribers[sub] = struct{}{}
	b.fanMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.fanMu.Lock()
			delete(b.subscribers, sub)
			close(sub.ch)
			b.fanMu.Unlock()
		})
	}
	context.AfterFunc(ctx, cancel)
	return sub.ch, cancel, nil
}

// fanOut delivers snap to subscribers and the sink. Caller holds b.fanMu.
func (a *Aggregator) fanOut(ctx context.Context, b *board, snap *snapshot) {
	rendered := make(map[int]domain.Leaderboard)
	view := func(topN int) domain.Leaderboard {
		lb, ok := rendered[topN]
		if !ok {
			lb = a.render(ctx, b.kind, snap, 0, topN)
			rendered[topN] = lb
		}
		return lb
	}

	for sub := range b.subscribers {
		if snap.version <= sub.lastVersion {
			continue
		}
		lb := view(sub.topN)
		select {
		case sub.ch <- lb:
		default:
			// Drop the oldest pending snapshot so the newest always lands.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- lb
		}
		sub.lastVersion = snap.version
	}

	if a.opts.Sink != nil {
		if err := a.opts.Sink.PublishSnapshot(ctx, view(a.opts.SinkTopN)); err != nil {
			zap.L().Warn("mirror leaderboard snapshot failed",
				zap.String("window", string(b.kind)),
				zap.Uint64("version", snap.version),
				zap.Error(err))
		}
	}
}

// render turns snapshot rows into decorated entries.
func (a *Aggregator) render(ctx context.Context, kind domain.WindowKind, snap *snapshot, offset, limit int) domain.Leaderboard {
	rows := snap.page(offset, limit)
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entry := domain.LeaderboardEntry{
			UserID:      r.UserID,
			DisplayName: r.UserID,
			Total:       r.Total,
			Rank:        r.Rank,
			ReachedAt:   r.ReachedAt,
		}
		if a.profiles != nil {
			if profile, err := a.profiles.GetProfile(ctx, r.UserID); err == nil {
				if profile.DisplayName != "" {
					entry.DisplayName = profile.DisplayName
				}
				entry.Avatar = profile.Avatar
				entry.BadgeCount = profile.BadgeCount
			}
		}
		entries = append(entries, entry)
	}
	return domain.Leaderboard{
		Window:      kind,
		Version:     snap.version,
		WindowStart: snap.window.Start,
		WindowEnd:   snap.window.End,
		Entries:     entries,
		TotalCount:  len(snap.rows),
		UpdatedAt:   snap.publishedAt,
	}
}
