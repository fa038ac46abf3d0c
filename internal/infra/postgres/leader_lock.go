package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// LeaderLock is a session-level advisory lock held on one pooled connection.
// At most one process holds a given key; the others keep retrying.
type LeaderLock struct {
	pool  *pgxpool.Pool
	key   int64
	retry time.Duration

	mu      sync.Mutex
	conn    *pgxpool.Conn
	lastTry time.Time
}

func NewLeaderLock(pool *pgxpool.Pool, key int64, retry time.Duration) *LeaderLock {
	return &LeaderLock{pool: pool, key: key, retry: retry}
}

// Acquire reports whether this process holds the lock. A process that does not
// hold it tries to take it at most once per retry interval.
func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		if !l.conn.Conn().IsClosed() {
			return true, nil
		}
		// The session ended, and the lock with it.
		l.conn.Release()
		l.conn = nil
	}
	if !l.lastTry.IsZero() && time.Since(l.lastTry) < l.retry {
		return false, nil
	}
	l.lastTry = time.Now()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release gives the lock up if held.
func (l *LeaderLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
