package services

import (
	"context"
	"log"
)

type backgroundNotifier struct {
	next Notifier
}

// Background runs next on its own goroutine so slow collaborators such as an
// email API never hold up the request. Errors are only logged.
func Background(next Notifier) Notifier {
	return backgroundNotifier{next: next}
}

func (b backgroundNotifier) Notify(ctx context.Context, n Notification) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := b.next.Notify(ctx, n); err != nil {
			log.Printf("🔥 Failed to deliver notification for message %d: %v", n.Message.ID, err)
		}
	}()
	return nil
}
