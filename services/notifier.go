package services

import (
	"context"
	"errors"

	"github.com/anjiri1684/private_messages/models"
)

// Notification describes a freshly created message. Actor is the sender and
// Recipient the user the message is addressed to.
type Notification struct {
	Actor     models.User
	Recipient models.User
	Message   models.Message
	IsReply   bool
}

// Notifier is told about every message after it has been stored.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// MultiNotifier fans a notification out to every notifier and joins their
// errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
