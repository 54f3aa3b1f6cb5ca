package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/private_messages/configs"
	"github.com/anjiri1684/private_messages/database"
	"github.com/anjiri1684/private_messages/handlers"
	"github.com/anjiri1684/private_messages/jobs"
	"github.com/anjiri1684/private_messages/notifications"
	"github.com/anjiri1684/private_messages/routes"
	"github.com/anjiri1684/private_messages/services"
	"github.com/anjiri1684/private_messages/utils"
	"github.com/anjiri1684/private_messages/websocket"
	"github.com/robfig/cron/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	notifier := services.MultiNotifier{hub}
	if brevo := notifications.NewBrevoServiceFromEnv(); brevo != nil {
		notifier = append(notifier, services.Background(notifications.NewEmailNotifier(brevo)))
		log.Println("✅ Email notifications enabled.")
	}

	quote, err := utils.QuoteStyle(config.ConfigDefault("MESSAGES_QUOTE_STYLE", "default"))
	if err != nil {
		log.Fatalf("🔥 Invalid MESSAGES_QUOTE_STYLE: %v", err)
	}

	svc := services.NewMessageService(database.DB,
		services.WithNotifier(notifier),
		services.WithRecipientFilter(services.ActiveRecipients),
		services.WithQuote(quote),
		services.WithTrashWindow(config.DurationUnit("HIDE_DELETED_MESSAGES_AFTER", 0, 24*time.Hour)),
	)

	maxAge := config.Duration("DELETED_MESSAGE_MAX_AGE", 30*24*time.Hour)
	h := handlers.NewMessageHandler(svc, maxAge)

	c := cron.New()
	if _, err := jobs.Schedule(c, config.ConfigDefault("MESSAGES_PURGE_SCHEDULE", "@daily"), svc, maxAge); err != nil {
		log.Fatalf("🔥 Failed to schedule purge job: %v", err)
	}
	c.Start()
	defer c.Stop()
	log.Println("✅ Cron job for deleted message purge scheduled successfully.")

	app := routes.NewApp()
	routes.PublicRoutes(app)
	routes.AuthRoutes(app)
	routes.ProfileRoutes(app)
	routes.MessagingRoutes(app, h)
	routes.RealtimeRoutes(app, hub)
	routes.AdminRoutes(app, h)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	port := config.ConfigDefault("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
