package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contest-ranking-service/internal/domain"
)

func TestPrintLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	printLeaderboard(&buf, domain.Leaderboard{
		Window:      domain.WindowWeekly,
		Version:     3,
		WindowStart: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC),
		TotalCount:  2,
		Entries: []domain.LeaderboardEntry{
			{UserID: "u1", DisplayName: "Alice", Total: 120, Rank: 1},
			{UserID: "u2", DisplayName: "Bob", Total: 90, Rank: 2},
		},
	})
	out := buf.String()
	for _, want := range []string{"weekly leaderboard (version 3, 2 users)", "2026-10-19 .. 2026-10-26", "Alice", "120"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRebuildRequiresPostgres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var buf bytes.Buffer
	err := runRebuild(context.Background(), &buf, path, "", 5)
	if err == nil || !strings.Contains(err.Error(), "postgres.url") {
		t.Fatalf("expected postgres requirement error, got %v", err)
	}
	if err := runRebuild(context.Background(), &buf, path, "yearly", 5); err == nil {
		t.Fatalf("expected unknown window to be rejected")
	}
}
