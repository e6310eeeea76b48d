package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

const (
	sseKeepAliveInterval = 15 * time.Second
	wsPingInterval       = 30 * time.Second
	wsWriteTimeout       = 10 * time.Second
)

// handleSessionEvents streams the session's diagnostic events as SSE, one
// JSON event per data: frame. The stream ends when the session finishes or
// the client disconnects; keepalive comments hold idle connections open.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel, err := s.manager.Subscribe(mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeUnknown, "connection does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				s.log.Error("event encode failed",
					zap.String("event_id", event.ID),
					zap.Error(err),
				)

				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleSessionWS serves the same event feed over a websocket. The server
// closes with a normal closure frame once the session finishes.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	events, cancel, err := s.manager.Subscribe(mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return
	}
	defer conn.Close()

	// The reader drains client frames so close handshakes and pongs are
	// processed; its exit means the client went away.
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, open := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))

				return
			}

			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
