package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anjiri1684/private_messages/models"
	"github.com/anjiri1684/private_messages/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = validator.New()

// RecipientFilter decides whether a resolved user may receive messages.
type RecipientFilter func(recipient models.User) bool

// ActiveRecipients accepts only users whose account is active.
func ActiveRecipients(recipient models.User) bool {
	return recipient.IsActive
}

type MessageService struct {
	db              *gorm.DB
	notifier        Notifier
	recipientFilter RecipientFilter
	quote           utils.QuoteFunc
	trashWindow     time.Duration
	now             func() time.Time
}

type Option func(*MessageService)

func WithNotifier(n Notifier) Option {
	return func(s *MessageService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithRecipientFilter(f RecipientFilter) Option {
	return func(s *MessageService) { s.recipientFilter = f }
}

func WithQuote(q utils.QuoteFunc) Option {
	return func(s *MessageService) {
		if q != nil {
			s.quote = q
		}
	}
}

// WithTrashWindow hides trash entries deleted longer ago than d. Zero keeps
// everything visible.
func WithTrashWindow(d time.Duration) Option {
	return func(s *MessageService) { s.trashWindow = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *MessageService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMessageService(db *gorm.DB, opts ...Option) *MessageService {
	s := &MessageService{
		db:       db,
		notifier: NopNotifier{},
		quote:    utils.FormatQuote,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ComposeInput struct {
	SenderID  uuid.UUID
	Recipient string `validate:"required"`
	Subject   string `validate:"required"`
	Body      string `validate:"required"`
}

type ReplyInput struct {
	SenderID uuid.UUID
	ParentID uint
	Subject  string
	Body     string `validate:"required"`
}

// ReplyDraft is the prefilled form for answering a message.
type ReplyDraft struct {
	ParentID  uint        `json:"parent_id"`
	Recipient models.User `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
}

type ConversationView struct {
	ConversationID uint             `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
	Reply          ReplyDraft       `json:"reply"`
}

// Send validates a new message and stores it as the root of a new
// conversation.
func (s *MessageService) Send(ctx context.Context, in ComposeInput) (*models.Message, error) {
	in.Recipient = strings.TrimSpace(in.Recipient)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	sender, err := s.sender(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.ResolveRecipient(ctx, in.Recipient)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, sender, recipient, in.Subject, in.Body, nil)
}

// Reply answers the message parentID. Only its sender or recipient may reply;
// anyone else gets ErrNotFound.
func (s *MessageService) Reply(ctx context.Context, in ReplyInput) (*models.Message, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	parent, err := s.accessibleMessage(ctx, in.SenderID, in.ParentID)
	if err != nil {
		return nil, err
	}
	sender, err := s.sender(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}

	recipient := parent.Counterpart(in.SenderID)
	if recipient.ID == uuid.Nil {
		return nil, invalidRecipient(ErrUnknownRecipient)
	}
	if !s.accepts(recipient) {
		return nil, invalidRecipient(ErrRecipientRejected)
	}

	subject := in.Subject
	if subject == "" {
		subject = utils.ReplySubject(parent.Subject)
	}
	return s.create(ctx, sender, recipient, subject, in.Body, parent)
}

// ResolveRecipient looks a user up by username and applies the recipient
// filter.
func (s *MessageService) ResolveRecipient(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, invalidRecipient(ErrUnknownRecipient)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("resolve recipient: %w", err)
	}
	if !s.accepts(user) {
		return models.User{}, invalidRecipient(ErrRecipientRejected)
	}
	return user, nil
}

// ReplyDraft prepares the reply form for parentID as seen by userID.
func (s *MessageService) ReplyDraft(ctx context.Context, userID uuid.UUID, parentID uint) (*ReplyDraft, error) {
	parent, err := s.accessibleMessage(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}
	draft := s.draftFor(userID, *parent)
	return &draft, nil
}

// View returns a whole conversation and marks the messages addressed to
// userID as read. The caller must be a party of the latest message.
func (s *MessageService) View(ctx context.Context, userID uuid.UUID, conversationID uint) (*ConversationView, error) {
	messages, err := s.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNotFound
	}
	latest := messages[len(messages)-1]
	if !latest.Involves(userID) {
		return nil, ErrNotFound
	}

	now := s.now()
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, userID).
		Update("read_at", now).Error
	if err != nil {
		return nil, fmt.Errorf("mark conversation %d read: %w", conversationID, err)
	}
	for i := range messages {
		if messages[i].RecipientID == userID && messages[i].ReadAt == nil {
			messages[i].ReadAt = &now
		}
	}

	return &ConversationView{
		ConversationID: conversationID,
		Messages:       messages,
		Reply:          s.draftFor(userID, latest),
	}, nil
}

func (s *MessageService) create(ctx context.Context, sender, recipient models.User, subject, body string, parent *models.Message) (*models.Message, error) {
	now := s.now()
	msg := models.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Subject:     utils.Truncate(subject, models.SubjectMaxLength),
		Body:        body,
		SentAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parent != nil {
			msg.ParentMessageID = &parent.ID
			msg.ConversationID = parent.ConversationID
			if msg.ConversationID == nil {
				msg.ConversationID = &parent.ID
			}
			if err := tx.Model(&models.Message{}).Where("id = ?", parent.ID).Update("replied_at", now).Error; err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
			return err
		}

		if msg.ConversationID == nil {
			err := tx.Model(&models.Message{}).
				Where("id = ? AND conversation_id IS NULL", msg.ID).
				Update("conversation_id", msg.ID).Error
			if err != nil {
				return err
			}
			id := msg.ID
			msg.ConversationID = &id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if parent != nil {
		parent.RepliedAt = &now
	}
	msg.Sender = sender
	msg.Recipient = recipient

	s.notify(ctx, Notification{
		Actor:     sender,
		Recipient: recipient,
		Message:   msg,
		IsReply:   parent != nil,
	})
	return &msg, nil
}

func (s *MessageService) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Printf("⚠️ Failed to notify about message %d: %v", n.Message.ID, err)
	}
}

func (s *MessageService) draftFor(userID uuid.UUID, parent models.Message) ReplyDraft {
	return ReplyDraft{
		ParentID:  parent.ID,
		Recipient: parent.Counterpart(userID),
		Subject:   utils.Truncate(utils.ReplySubject(parent.Subject), models.SubjectMaxLength),
		Body:      s.quote(parent.Sender.Username, parent.Body),
	}
}

func (s *MessageService) accepts(user models.User) bool {
	return s.recipientFilter == nil || s.recipientFilter(user)
}

func (s *MessageService) sender(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	if id == uuid.Nil {
		return user, &ValidationError{Field: "sender", Message: "Unknown user", Err: ErrRequired}
	}
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, &ValidationError{Field: "sender", Message: "Unknown user", Err: ErrNotFound}
	}
	if err != nil {
		return user, fmt.Errorf("load sender: %w", err)
	}
	return user, nil
}

// accessibleMessage loads a message the user sent or received.
func (s *MessageService) accessibleMessage(ctx context.Context, userID uuid.UUID, id uint) (*models.Message, error) {
	var msg models.Message
	err := s.related(ctx).First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load message %d: %w", id, err)
	}
	if !msg.Involves(userID) {
		return nil, ErrNotFound
	}
	return &msg, nil
}

// related preloads both parties of every loaded message.
func (s *MessageService) related(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Sender").Preload("Recipient")
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: "This field is required.",
			Err:     ErrRequired,
		}
	}
	return err
}
