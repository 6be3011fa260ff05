package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

const (
	eventBuffer       = 32
	keepaliveInterval = 25 * time.Second
)

// Events streams registry events as server-sent events. A client that falls more than
// eventBuffer events behind loses the overflow; it can resync with GET /api/sources.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// the server write timeout would cut the stream
		_ = rc.SetWriteDeadline(time.Time{})

		ch := make(chan domain.Event, eventBuffer)
		unsubscribe := d.Manager.Subscribe(func(ev domain.Event) {
			select {
			case ch <- ev:
			default:
				d.Logger.Debug("event stream slow, dropping event", logger.String("type", string(ev.Type)))
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			d.Logger.Warn("event stream not supported", logger.Error(err))
			return
		}

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
			case ev := <-ch:
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
