package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/channel"
)

const (
	eventBuffer       = 64
	keepAliveInterval = 15 * time.Second
)

// EventsHandler streams notifications to one observer as Server-Sent Events.
type EventsHandler struct {
	hub *channel.Hub
}

func NewEventsHandler(hub *channel.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(eventBuffer)
	defer h.hub.Unsubscribe(sub)

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"observerId\":%q}\n\n", sub.ID)
	w.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			w.Flush()
		case n, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal notification")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				log.Debug().Str("observerId", sub.ID).Err(err).Msg("Observer write failed")
				return
			}
			w.Flush()
		}
	}
}
