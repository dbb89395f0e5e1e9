package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Capture UI runs on a different origin in dev
	},
}

const progressPollInterval = 500 * time.Millisecond

// ProgressWsHandler pushes batch progress snapshots to the capture UI over
// a websocket, closing once the run reaches a terminal state.
type ProgressWsHandler struct {
	Progress ProgressReader
}

func NewProgressWsHandler(prog ProgressReader) *ProgressWsHandler {
	return &ProgressWsHandler{Progress: prog}
}

func (h *ProgressWsHandler) Register(r chi.Router) {
	r.Get("/matches/{matchID}/clips/ws", h.ServeWS)
}

// GET /api/v1/matches/{matchID}/clips/ws
func (h *ProgressWsHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS Upgrade Failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	var lastUpdated int64
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		snap, err := h.Progress.Get(r.Context(), matchID)
		if err != nil {
			log.Printf("WS progress read failed for match %s: %v", matchID, err)
			return
		}
		if snap == nil {
			continue
		}
		if snap.UpdatedAt == lastUpdated && snap.State == "running" {
			continue
		}
		lastUpdated = snap.UpdatedAt

		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		if snap.State != "running" {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, snap.State))
			return
		}
	}
}
