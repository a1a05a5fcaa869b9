package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/service"
)

// EventsHandler streams pipeline events to connected admin dashboards over
// a websocket.
type EventsHandler struct {
	stream service.EventStream
	logger zerolog.Logger
}

// NewEventsHandler constructs the events handler.
func NewEventsHandler(stream service.EventStream, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		stream: stream,
		logger: logger.With().Str("component", "events_handler").Logger(),
	}
}

// Register binds the websocket upgrade under the provided router group.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *EventsHandler) handleConnection(conn *websocket.Conn) {
	events, cancel := h.stream.Subscribe()
	defer cancel()
	defer func() { _ = conn.Close() }()

	// Drain client frames so close handshakes are observed; the feed is
	// one-directional.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to encode pipeline event")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
