package server

import (
	"fmt"
	"net/http"
	"time"
)

// keepAliveInterval is how often an idle stream receives a comment line.
const keepAliveInterval = 15 * time.Second

// handleEvents streams bus events to a renderer as Server-Sent Events. The
// first event, "hello", tells the renderer its client id and whether it owns
// the audio element.
func (ms *MusicServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	client := ms.clients.Register(r.UserAgent(), r.RemoteAddr)
	defer ms.clients.Remove(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: hello\ndata: {\"clientId\":%q,\"audio\":%t}\n\n",
		client.ID, ms.clients.IsAudioClient(client.ID))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case evt, open := <-client.Events():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Channel, evt.Data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
