package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/anjiri1684/private_messages/services"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error
}

// EmailNotifier emails the recipient of every new message.
type EmailNotifier struct {
	Mailer Mailer
}

var _ services.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(m Mailer) *EmailNotifier {
	return &EmailNotifier{Mailer: m}
}

func (e *EmailNotifier) Notify(ctx context.Context, n services.Notification) error {
	if e.Mailer == nil {
		return nil
	}
	subject, content := renderNewMessage(n)
	return e.Mailer.Send(ctx, n.Recipient.Email, n.Recipient.DisplayName(), subject, content)
}

func renderNewMessage(n services.Notification) (string, string) {
	subject := fmt.Sprintf("New message from %s: %s", n.Actor.Username, n.Message.Subject)
	heading := "You have received a message"
	if n.IsReply {
		subject = fmt.Sprintf("%s replied: %s", n.Actor.Username, n.Message.Subject)
		heading = "You have received a reply to a message"
	}

	body := html.EscapeString(n.Message.Body)
	body = strings.ReplaceAll(body, "\n", "<br>")

	content := fmt.Sprintf(
		"<h1>%s</h1><p><b>From:</b> %s</p><p><b>Subject:</b> %s</p><p>%s</p>",
		heading,
		html.EscapeString(n.Actor.DisplayName()),
		html.EscapeString(n.Message.Subject),
		body,
	)
	return subject, content
}
