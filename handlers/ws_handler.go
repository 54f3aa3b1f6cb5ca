package handlers

import (
	"log"

	"github.com/anjiri1684/private_messages/middleware"
	"github.com/anjiri1684/private_messages/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeWs authenticates the socket with a first {"type":"auth"} frame and then
// keeps it registered with the hub until the client goes away. The socket is
// push only; anything the client sends afterwards is ignored.
func ServeWs(hub *websocket.Hub) func(*websocketcontrib.Conn) {
	return func(c *websocketcontrib.Conn) {
		var authMsg wsAuthMessage
		if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
			log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
			c.Close()
			return
		}

		claims, err := middleware.ParseToken(authMsg.Token)
		if err != nil {
			log.Printf("WebSocket auth failed: invalid token, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
			c.Close()
			return
		}

		rawID, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(rawID)
		if err != nil {
			log.Printf("WebSocket auth failed: invalid user_id, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
			c.Close()
			return
		}

		client := &websocket.Client{UserID: userID, Conn: c}
		hub.Register(client)
		defer func() {
			hub.Unregister(client)
			c.Close()
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
					log.Printf("WebSocket closed for client %s", userID)
				} else {
					log.Printf("WebSocket read error for client %s: %v", userID, err)
				}
				return
			}
		}
	}
}

// WsUpgradeRequired rejects plain HTTP requests on the websocket route.
func WsUpgradeRequired(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}
