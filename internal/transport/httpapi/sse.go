package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/gridlock/internal/notifier"
)

// sseKeepAliveInterval is how often an idle stream emits a comment frame so
// proxies do not reap the connection.
const sseKeepAliveInterval = 15 * time.Second

// handleEvents streams the change feed as Server-Sent Events. Each event is
// an `event:` line naming the kind followed by a `data:` line with the JSON
// payload. The first frame is always the current session snapshot so a
// client never renders from nothing.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.notifier.Subscribe()
	defer sub.Close()

	ctx := r.Context()

	if snapshot, rpcErr := s.dispatcher.Dispatch(ctx, "view_game_state", nil); rpcErr == nil {
		writeFrame(w, string(notifier.KindSession), snapshot)
	}
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-sub.C:
			if !open {
				return
			}
			writeFrame(w, string(ev.Kind), framePayload(ev))
			flusher.Flush()
		}
	}
}

func framePayload(ev notifier.Event) any {
	switch ev.Kind {
	case notifier.KindSession:
		return ev.Session
	case notifier.KindMessage:
		return ev.Message
	default:
		return map[string]string{"method": ev.Method}
	}
}

func writeFrame(w http.ResponseWriter, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s event: %v", kind, err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
}
