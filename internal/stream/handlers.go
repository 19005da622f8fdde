package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Current returns the payload a client sees right after connecting to
// topic, if any.
type Current func(topic string) ([]byte, bool)

// RegisterRoutes serves /ws/:sessionID. The session id "live" follows
// whichever session is collecting. When current is set, a new client first
// receives the latest snapshot for its topic.
func RegisterRoutes(r fiber.Router, hub *Hub, current Current) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		topic := c.Params("sessionID")
		client := hub.Register(topic)

		var first []byte
		if current != nil {
			if payload, ok := current(topic); ok {
				first = payload
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			if first != nil {
				if err := c.WriteMessage(websocket.TextMessage, first); err != nil {
					return
				}
			}
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// closes Send so the writer exits
		hub.Unregister(client)
		<-done
	}))
}
