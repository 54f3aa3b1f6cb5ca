package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const SubjectMaxLength = 120

// Message is one private message. ConversationID is the thread id: the id of
// the first message of the thread, assigned right after that message is
// inserted.
type Message struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	SenderID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"sender_id"`
	RecipientID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Subject            string     `gorm:"size:120;not null" json:"subject"`
	Body               string     `gorm:"type:text;not null" json:"body"`
	SentAt             time.Time  `gorm:"not null;index" json:"sent_at"`
	ReadAt             *time.Time `json:"read_at"`
	RepliedAt          *time.Time `json:"replied_at"`
	SenderDeletedAt    *time.Time `json:"sender_deleted_at"`
	RecipientDeletedAt *time.Time `json:"recipient_deleted_at"`
	ParentMessageID    *uint      `gorm:"index" json:"parent_message_id"`
	ConversationID     *uint      `gorm:"index" json:"conversation_id"`

	Sender    User `gorm:"foreignKey:SenderID" json:"sender"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"recipient"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return nil
}

// IsNew reports whether the recipient has not read the message yet.
func (m Message) IsNew() bool {
	return m.ReadAt == nil
}

func (m Message) IsReplied() bool {
	return m.RepliedAt != nil
}

// Involves reports whether userID is the sender or the recipient.
func (m Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// Counterpart returns the other party of the message as seen by userID.
func (m Message) Counterpart(userID uuid.UUID) User {
	if m.SenderID == userID {
		return m.Recipient
	}
	return m.Sender
}
