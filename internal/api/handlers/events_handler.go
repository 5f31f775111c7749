package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/realtime"
	"github.com/krishi-mitra/backend/pkg/logger"
)

// EventsHandler streams batch-analysis progress to the client that started
// it, keyed by the identity resolved before the websocket upgrade.
type EventsHandler struct {
	hub *realtime.Hub
}

func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

func (h *EventsHandler) HandleConnection(c *websocket.Conn) {
	identity, _ := c.Locals("identity").(string)
	if identity == "" {
		logger.Warn("WebSocket connection without identity rejected")
		c.Close()
		return
	}

	logger.Info("Event stream opened", zap.String("identity", identity))

	events, cancel := h.hub.Subscribe(identity)
	defer func() {
		cancel()
		c.Close()
		logger.Info("Event stream closed", zap.String("identity", identity))
	}()

	// Reads only serve to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				logger.Debug("Failed to write event", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
