package http

import (
	"context"
	"net/http"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	defaultTopN    = 10
)

// LeaderboardStream pushes whole top-N snapshots of one window over a websocket.
type LeaderboardStream struct {
	service  *app.ContestService
	upgrader websocket.Upgrader
}

func NewLeaderboardStream(service *app.ContestService) *LeaderboardStream {
	return &LeaderboardStream{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS handles /ws/leaderboard?window=weekly&top=10. Clients only listen;
// anything they send is discarded.
func (h *LeaderboardStream) ServeWS(w http.ResponseWriter, r *http.Request) {
	rawWindow := r.URL.Query().Get("window")
	if rawWindow == "" {
		rawWindow = string(domain.WindowGlobal)
	}
	window, err := domain.ParseWindowKind(rawWindow)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := intParam(r.URL.Query().Get("top"), defaultTopN)
	if err != nil {
		badRequest(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	updates, unsubscribe, err := h.service.SubscribeLeaderboard(ctx, window, top)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer unsubscribe()

	// Only this goroutine writes to conn.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case lb, ok := <-updates:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: lb}); err != nil {
					zap.L().Debug("ws write failed", zap.Error(err))
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	<-writerDone
}
