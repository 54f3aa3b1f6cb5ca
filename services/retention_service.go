package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/private_messages/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delete moves the given conversations to the trash of userID. Each side only
// touches its own column, so ids that do not belong to the user are skipped.
// It returns the number of messages changed.
func (s *MessageService) Delete(ctx context.Context, userID uuid.UUID, conversationIDs []uint) (int64, error) {
	return s.markDeleted(ctx, userID, conversationIDs, s.now())
}

// Undelete restores conversations from the trash of userID.
func (s *MessageService) Undelete(ctx context.Context, userID uuid.UUID, conversationIDs []uint) (int64, error) {
	return s.markDeleted(ctx, userID, conversationIDs, nil)
}

func (s *MessageService) markDeleted(ctx context.Context, userID uuid.UUID, conversationIDs []uint, value interface{}) (int64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}

	// A self-addressed message is updated on both columns but counted once.
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Message{}).
			Where("conversation_id IN ? AND (sender_id = ? OR recipient_id = ?)", conversationIDs, userID, userID).
			Count(&affected).Error
		if err != nil || affected == 0 {
			return err
		}

		err = tx.Model(&models.Message{}).
			Where("conversation_id IN ? AND recipient_id = ?", conversationIDs, userID).
			Update("recipient_deleted_at", value).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Message{}).
			Where("conversation_id IN ? AND sender_id = ?", conversationIDs, userID).
			Update("sender_deleted_at", value).Error
	})
	if err != nil {
		return 0, fmt.Errorf("update deletion flags: %w", err)
	}
	return affected, nil
}

func (s *MessageService) purgeable(ctx context.Context, maxAge time.Duration) *gorm.DB {
	limit := s.now().Add(-maxAge)
	return s.db.WithContext(ctx).
		Where("sender_deleted_at IS NOT NULL AND recipient_deleted_at IS NOT NULL").
		Where("sender_deleted_at <= ? AND recipient_deleted_at <= ?", limit, limit)
}

// PurgeDeleted hard deletes messages both parties deleted at least maxAge
// ago. With dryRun it only counts them.
func (s *MessageService) PurgeDeleted(ctx context.Context, maxAge time.Duration, dryRun bool) (int64, error) {
	if dryRun {
		var count int64
		if err := s.purgeable(ctx, maxAge).Model(&models.Message{}).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("count purgeable messages: %w", err)
		}
		return count, nil
	}

	res := s.purgeable(ctx, maxAge).Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge deleted messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeCandidates lists what PurgeDeleted would remove.
func (s *MessageService) PurgeCandidates(ctx context.Context, maxAge time.Duration) ([]models.Message, error) {
	var messages []models.Message
	if err := s.purgeable(ctx, maxAge).Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list purgeable messages: %w", err)
	}
	return messages, nil
}
