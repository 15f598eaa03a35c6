// Package sse streams hub messages to HTTP clients as server-sent events.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coupong/realtime"
)

// Source is the hub a stream subscribes to.
type Source interface {
	Subscribe(buffer int) (string, <-chan []byte)
	Unsubscribe(id string)
}

var _ Source = (*realtime.Hub)(nil)

// Options tunes a stream handler.
type Options struct {
	Buffer    int
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Handler returns an http.Handler that writes every hub message as an unnamed `data:` event,
// so browser EventSource.onmessage receives it.
// A comment line is written every Heartbeat to keep idle connections open.
func Handler(src Source, opts Options) http.Handler {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")

		id, ch := src.Subscribe(opts.Buffer)
		defer src.Unsubscribe(id)

		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		flusher.Flush()
		opts.Logger.DebugContext(r.Context(), "sse subscriber connected", "subscriber", id)

		heartbeat := time.NewTicker(opts.Heartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
					return
				}
				flusher.Flush()
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
