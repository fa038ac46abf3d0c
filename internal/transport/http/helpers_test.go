package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/domain"
	"contest-ranking-service/internal/infra/memory"
)

func newTestService(opts app.AggregatorOptions) *app.ContestService {
	ledger := app.NewScoreLedger(memory.NewLedgerStore(), 0)
	profiles := memory.NewProfileRepository(memory.NewStaticProfileLoader(map[string]domain.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice", BadgeCount: 4},
	}), time.Minute)
	board := app.NewAggregator(ledger, profiles, opts)
	return app.NewContestService(
		app.NewContestRegistry(memory.NewContestStore(), nil),
		app.NewParticipationTracker(memory.NewParticipationStore(), ledger, nil),
		ledger,
		board,
		nil,
	)
}

func newTestServer(t *testing.T, opts app.AggregatorOptions) (*httptest.Server, *app.ContestService) {
	t.Helper()
	service := newTestService(opts)
	server := httptest.NewServer(NewRouter(service, nil))
	t.Cleanup(server.Close)
	return server, service
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}
