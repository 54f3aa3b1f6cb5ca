package routes

import (
	"github.com/anjiri1684/private_messages/handlers"
	"github.com/anjiri1684/private_messages/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.MessageHandler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	users := admin.Group("/users")
	users.Get("", handlers.GetAllUsers)
	users.Put("/:userId/status", handlers.ToggleUserStatus)

	admin.Post("/messages/purge", h.PurgeDeletedMessages)
}
