package services

import (
	"context"
	"fmt"

	"github.com/anjiri1684/private_messages/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MailboxKind string

const (
	MailboxInbox  MailboxKind = "inbox"
	MailboxOutbox MailboxKind = "outbox"
	MailboxTrash  MailboxKind = "trash"
)

// Page selects a 1-based page. A zero Size means no limit.
type Page struct {
	Number int
	Size   int
}

func (p Page) scope(db *gorm.DB) *gorm.DB {
	if p.Size <= 0 {
		return db
	}
	n := p.Number
	if n < 1 {
		n = 1
	}
	return db.Limit(p.Size).Offset((n - 1) * p.Size)
}

// Mailbox lists one message per conversation: the latest message of that
// conversation matching the mailbox predicate for userID. Newest first.
func (s *MessageService) Mailbox(ctx context.Context, userID uuid.UUID, kind MailboxKind, page Page) ([]models.Message, error) {
	latest, err := s.latestPerConversation(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	err = s.related(ctx).
		Where("id IN (?)", latest).
		Order("sent_at DESC").
		Order("id DESC").
		Scopes(page.scope).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return messages, nil
}

// latestPerConversation builds "SELECT MAX(id) ... GROUP BY conversation_id"
// restricted to the rows that belong in the mailbox.
func (s *MessageService) latestPerConversation(ctx context.Context, userID uuid.UUID, kind MailboxKind) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).Select("MAX(id)")

	switch kind {
	case MailboxInbox:
		q = q.Where("recipient_id = ? AND recipient_deleted_at IS NULL", userID)
	case MailboxOutbox:
		q = q.Where("sender_id = ? AND sender_deleted_at IS NULL", userID)
	case MailboxTrash:
		if s.trashWindow > 0 {
			cutoff := s.now().Add(-s.trashWindow)
			q = q.Where(
				"(sender_id = ? AND sender_deleted_at IS NOT NULL AND sender_deleted_at >= ?) OR (recipient_id = ? AND recipient_deleted_at IS NOT NULL AND recipient_deleted_at >= ?)",
				userID, cutoff, userID, cutoff,
			)
		} else {
			q = q.Where(
				"(sender_id = ? AND sender_deleted_at IS NOT NULL) OR (recipient_id = ? AND recipient_deleted_at IS NOT NULL)",
				userID, userID,
			)
		}
	default:
		return nil, fmt.Errorf("unknown mailbox %q", kind)
	}

	return q.Group("conversation_id"), nil
}

// Conversation returns every message of a thread, oldest first. It does not
// check who is asking.
func (s *MessageService) Conversation(ctx context.Context, conversationID uint) ([]models.Message, error) {
	return s.Conversations(ctx, []uint{conversationID})
}

func (s *MessageService) Conversations(ctx context.Context, conversationIDs []uint) ([]models.Message, error) {
	var messages []models.Message
	if len(conversationIDs) == 0 {
		return messages, nil
	}
	err := s.related(ctx).
		Where("conversation_id IN ?", conversationIDs).
		Order("sent_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	return messages, nil
}

// UnreadCount counts messages received by userID that are neither read nor
// deleted. It does not mark anything as read.
func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL AND recipient_deleted_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
