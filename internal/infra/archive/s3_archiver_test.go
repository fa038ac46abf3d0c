package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func TestArchiveSnapshotWritesJSONObject(t *testing.T) {
	putter := &fakePutter{}
	archiver := newS3Archiver(putter, "ranking-archive", "")

	lb := domain.Leaderboard{
		Window:      domain.WindowWeekly,
		Version:     42,
		WindowStart: time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		Entries:     []domain.LeaderboardEntry{{UserID: "alice", Total: 120, Rank: 1}},
		TotalCount:  1,
	}
	if err := archiver.ArchiveSnapshot(context.Background(), lb); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(putter.inputs) != 1 {
		t.Fatalf("expected one put, got %d", len(putter.inputs))
	}
	in := putter.inputs[0]
	if aws.ToString(in.Bucket) != "ranking-archive" || aws.ToString(in.Key) != "leaderboards/weekly/2026-10-12.json" {
		t.Fatalf("unexpected location %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "application/json" {
		t.Fatalf("unexpected content type %q", aws.ToString(in.ContentType))
	}
	var decoded domain.Leaderboard
	if err := json.Unmarshal(putter.bodies[0], &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Version != 42 || decoded.Entries[0].UserID != "alice" {
		t.Fatalf("unexpected archived body %+v", decoded)
	}
}

func TestArchiveSnapshotWrapsPutError(t *testing.T) {
	boom := errors.New("bucket gone")
	archiver := newS3Archiver(&fakePutter{err: boom}, "b", "archive")
	err := archiver.ArchiveSnapshot(context.Background(), domain.Leaderboard{Window: domain.WindowMonthly})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestNewS3ArchiverRequiresBucket(t *testing.T) {
	if _, err := NewS3Archiver(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected missing bucket to be rejected")
	}
}
