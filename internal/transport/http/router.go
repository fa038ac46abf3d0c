package http

import (
	"net/http"
	"time"

	"contest-ranking-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter mounts the REST API, the leaderboard stream and the health check.
func NewRouter(service *app.ContestService, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	contests := NewContestHandler(service)
	stream := NewLeaderboardStream(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/contests", func(r chi.Router) {
		r.Post("/", contests.CreateContest)
		r.Get("/", contests.ListContests)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", contests.GetContest)
			r.Get("/state", contests.GetContestState)
			r.Post("/join", contests.JoinContest)
			r.Get("/participants/{userId}", contests.GetParticipation)
		})
	})
	r.Post("/participations/{id}/start", contests.StartAttempt)
	r.Post("/participations/{id}/score", contests.SubmitScore)
	r.Post("/activities", contests.RecordActivity)
	r.Get("/leaderboards/{window}", contests.GetLeaderboard)
	r.Get("/leaderboards/{window}/users/{userId}", contests.RankOf)
	r.Get("/ws/leaderboard", stream.ServeWS)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
