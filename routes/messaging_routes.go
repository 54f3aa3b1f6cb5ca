package routes

import (
	"github.com/anjiri1684/private_messages/handlers"
	"github.com/anjiri1684/private_messages/middleware"
	"github.com/anjiri1684/private_messages/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MessagingRoutes(app *fiber.App, h *handlers.MessageHandler) {
	api := app.Group("/api/v1")

	messages := api.Group("/messages", middleware.Protected())
	messages.Get("", func(c *fiber.Ctx) error {
		return c.Redirect("/api/v1/messages/inbox")
	})
	messages.Get("/inbox", h.Inbox)
	messages.Get("/outbox", h.Outbox)
	messages.Get("/trash", h.Trash)
	messages.Get("/unread-count", h.UnreadCount)
	messages.Get("/compose/:recipient", h.ComposeDraft)
	messages.Post("/compose", h.Compose)
	messages.Get("/reply/:messageId", h.ReplyDraft)
	messages.Post("/reply/:messageId", h.Reply)
	messages.Get("/view/:conversationId", h.View)
	messages.Post("/delete", h.Delete)
	messages.Post("/undelete", h.Undelete)
}

// RealtimeRoutes exposes the push socket fed by hub.
func RealtimeRoutes(app *fiber.App, hub *websocket.Hub) {
	api := app.Group("/api/v1")
	api.Use("/ws", handlers.WsUpgradeRequired)
	api.Get("/ws", websocketcontrib.New(handlers.ServeWs(hub)))
}
