package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// parseFilter reads ?events=name1,name2. A nil result accepts everything.
func parseFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("events")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, name := range strings.Split(q, ",") {
		if name = strings.TrimSpace(name); name != "" {
			filter[name] = true
		}
	}
	return filter
}

// SSEHandler streams bus events as server-sent events.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := parseFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Name] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, evt.Payload)
				flusher.Flush()
			}
		}
	}
}

// WSHandler streams bus events as websocket text frames, one event per frame.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := parseFilter(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("event websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// Reading detects the client going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Name] {
					continue
				}
				if err := wsutil.WriteServerText(conn, []byte(evt.Payload)); err != nil {
					slog.Debug("event websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
