package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// SnapshotTTL bounds how long a mirrored leaderboard lingers after the last write.
		SnapshotTTL string `yaml:"snapshotTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		Timezone         string `yaml:"timezone"`
		RolloverInterval string `yaml:"rolloverInterval"`
		RetainVersions   int    `yaml:"retainVersions"`
		SubscriberBuffer int    `yaml:"subscriberBuffer"`
		SinkTopN         int    `yaml:"sinkTopN"`
	} `yaml:"leaderboard"`
	Profiles struct {
		TTL string `yaml:"ttl"`
	} `yaml:"profiles"`
	Archive struct {
		Bucket          string `yaml:"bucket"`
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"accessKeyId"`
		SecretAccessKey string `yaml:"secretAccessKey"`
		Prefix          string `yaml:"prefix"`
	} `yaml:"archive"`
	Log struct {
		Level       string `yaml:"level"`
		Environment string `yaml:"environment"`
	} `yaml:"log"`
}

// Load reads YAML config from path. Values may reference environment
// variables as ${NAME}.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves the leaderboard time zone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Leaderboard.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Leaderboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("leaderboard timezone: %w", err)
	}
	return loc, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
