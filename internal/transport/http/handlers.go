package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ContestHandler exposes contests, participations and leaderboards as JSON.
type ContestHandler struct {
	service *app.ContestService
}

func NewContestHandler(service *app.ContestService) *ContestHandler {
	return &ContestHandler{service: service}
}

func (h *ContestHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	var req createContestRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	contest, err := h.service.CreateContest(r.Context(), req.contest())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) ListContests(w http.ResponseWriter, r *http.Request) {
	state, err := domain.ParseLifecycleState(r.URL.Query().Get("state"))
	if err != nil {
		badRequest(w, err)
		return
	}
	contests, err := h.service.ListContests(r.Context(), state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contests == nil {
		contests = []domain.Contest{}
	}
	writeJSON(w, http.StatusOK, contests)
}

func (h *ContestHandler) GetContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.service.GetContest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

// GetContestState derives the phase at ?at= (RFC 3339) or now.
func (h *ContestHandler) GetContestState(w http.ResponseWriter, r *http.Request) {
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, fmt.Errorf("at must be an RFC 3339 timestamp"))
			return
		}
		at = parsed
	}
	contestID := chi.URLParam(r, "id")
	state, err := h.service.GetContestState(r.Context(), contestID, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	writeJSON(w, http.StatusOK, stateResponse{ContestID: contestID, State: state, At: at})
}

func (h *ContestHandler) JoinContest(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.service.JoinContest(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ContestHandler) GetParticipation(w http.ResponseWriter, r *http.Request) {
	p, ok, err := h.service.GetParticipation(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, domain.ErrParticipationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ContestHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.StartAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ContestHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.service.SubmitContestScore(r.Context(), chi.URLParam(r, "id"), *req.Score, *req.CorrectCount, req.TotalQuestions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ContestHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	ev, err := h.service.RecordActivity(r.Context(), req.UserID, domain.SourceKind(req.Kind), req.SourceID, req.Points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// GetLeaderboard serves ?page=&pageSize=&version=; pass the version of the
// first page to read later pages from the same snapshot.
func (h *ContestHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	window, err := domain.ParseWindowKind(chi.URLParam(r, "window"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err1 := intParam(q.Get("page"), 1)
	pageSize, err2 := intParam(q.Get("pageSize"), 0)
	version, err3 := uintParam(q.Get("version"))
	if err := errors.Join(err1, err2, err3); err != nil {
		badRequest(w, err)
		return
	}
	lb, err := h.service.GetLeaderboard(r.Context(), window, page, pageSize, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *ContestHandler) RankOf(w http.ResponseWriter, r *http.Request) {
	window, err := domain.ParseWindowKind(chi.URLParam(r, "window"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userId")
	rank, ok, err := h.service.RankOf(r.Context(), window, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Window: window, UserID: userID, Ranked: ok, Rank: rank})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return v, nil
}

func uintParam(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("version %q is not a snapshot version", raw)
	}
	return v, nil
}
