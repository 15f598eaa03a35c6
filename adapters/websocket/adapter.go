package websocket

import (
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

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
	Buffer       int
	WriteTimeout time.Duration
	PingInterval time.Duration
	CheckOrigin  func(r *http.Request) bool
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Handler returns an http.Handler that upgrades to WebSocket and streams leaderboard updates from the hub.
func Handler(src Source, opts Options) http.Handler {
	opts = opts.withDefaults()
	upgrader := gorillaws.Upgrader{CheckOrigin: opts.CheckOrigin}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.Logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		id, ch := src.Subscribe(opts.Buffer)
		defer src.Unsubscribe(id)
		opts.Logger.DebugContext(r.Context(), "websocket subscriber connected", "subscriber", id)

		// Drain client frames so close and pong control messages are processed.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(opts.PingInterval)
		defer ping.Stop()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
				if err := conn.WriteMessage(gorillaws.TextMessage, msg); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(gorillaws.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}
