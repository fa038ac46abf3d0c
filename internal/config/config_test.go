package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsSectionsAndExpandsEnv(t *testing.T) {
	t.Setenv("ARCHIVE_SECRET", "s3cr3t")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
  allowedOrigins: ["https://app.example.com"]
redis:
  addr: localhost:6379
  snapshotTtl: 2h
leaderboard:
  timezone: Asia/Ho_Chi_Minh
  rolloverInterval: 30s
  retainVersions: 8
archive:
  bucket: ranking
  secretAccessKey: ${ARCHIVE_SECRET}
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Leaderboard.RetainVersions != 8 || cfg.Archive.Bucket != "ranking" {
		t.Fatalf("unexpected sections %+v %+v", cfg.Leaderboard, cfg.Archive)
	}
	if cfg.Archive.SecretAccessKey != "s3cr3t" {
		t.Fatalf("expected env expansion, got %q", cfg.Archive.SecretAccessKey)
	}
	if got := TTLDuration(cfg.Leaderboard.RolloverInterval, time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s rollover interval, got %v", got)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Ho_Chi_Minh" {
		t.Fatalf("unexpected location %v %v", loc, err)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}

func TestLocationDefaultsToUTC(t *testing.T) {
	loc, err := Config{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v %v", loc, err)
	}
	cfg := Config{}
	cfg.Leaderboard.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); err == nil {
		t.Fatalf("expected unknown zone to fail")
	}
}
