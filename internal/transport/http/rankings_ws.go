package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/domain"
)

// RankingsWSHandler streams accuracy leaderboard snapshots to websocket
// clients: one on connect, then one after every finalized phase.
type RankingsWSHandler struct {
	rankings *app.RankingService
	feed     *app.RankingFeed
	upgrader websocket.Upgrader
}

func NewRankingsWSHandler(rankings *app.RankingService, feed *app.RankingFeed) *RankingsWSHandler {
	return &RankingsWSHandler{
		rankings: rankings,
		feed:     feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type boardMessage struct {
	Type    string                        `json:"type"`
	Payload []domain.AccuracyRankingEntry `json:"payload"`
}

// ServeWS upgrades the request and pushes board snapshots until the client
// disconnects.
func (h *RankingsWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	board, err := h.rankings.AccuracyLeaderboard(r.Context())
	if err != nil {
		log.Printf("ws initial board failed: %v", err)
		return
	}
	if err := conn.WriteJSON(boardMessage{Type: "accuracyLeaderboard", Payload: board}); err != nil {
		return
	}

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	// The read loop only exists to observe the disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(boardMessage{Type: "accuracyLeaderboard", Payload: board}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
