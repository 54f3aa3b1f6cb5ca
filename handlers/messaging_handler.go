package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/anjiri1684/private_messages/middleware"
	"github.com/anjiri1684/private_messages/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MessageHandler struct {
	svc         *services.MessageService
	purgeMaxAge time.Duration
}

// NewMessageHandler serves the messaging API. purgeMaxAge is the retention
// age used by the admin purge endpoint when the request does not set one.
func NewMessageHandler(svc *services.MessageService, purgeMaxAge time.Duration) *MessageHandler {
	return &MessageHandler{svc: svc, purgeMaxAge: purgeMaxAge}
}

// Fields are validated by the message service.
type ComposeRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type ReplyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ConversationIDsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

func (h *MessageHandler) Inbox(c *fiber.Ctx) error {
	return h.mailbox(c, services.MailboxInbox)
}

func (h *MessageHandler) Outbox(c *fiber.Ctx) error {
	return h.mailbox(c, services.MailboxOutbox)
}

func (h *MessageHandler) Trash(c *fiber.Ctx) error {
	return h.mailbox(c, services.MailboxTrash)
}

func (h *MessageHandler) mailbox(c *fiber.Ctx, kind services.MailboxKind) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	conversations, err := h.svc.Mailbox(c.UserContext(), userID, kind, services.Page{Number: page, Size: pageSize})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"mailbox":       kind,
		"conversations": conversations,
		"meta": fiber.Map{
			"current_page": page,
			"page_size":    pageSize,
		},
	})
}

func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.svc.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread": count})
}

// ComposeDraft checks a pre-addressed compose form before it is shown.
func (h *MessageHandler) ComposeDraft(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	recipient, err := h.svc.ResolveRecipient(c.UserContext(), c.Params("recipient"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"recipient": recipient})
}

func (h *MessageHandler) Compose(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req ComposeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	msg, err := h.svc.Send(c.UserContext(), services.ComposeInput{
		SenderID:  userID,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message successfully sent.",
		"data":    msg,
	})
}

func (h *MessageHandler) ReplyDraft(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	parentID, err := uintParam(c, "messageId")
	if err != nil {
		return respondError(c, services.ErrNotFound)
	}
	draft, err := h.svc.ReplyDraft(c.UserContext(), userID, parentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(draft)
}

func (h *MessageHandler) Reply(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	parentID, err := uintParam(c, "messageId")
	if err != nil {
		return respondError(c, services.ErrNotFound)
	}

	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	msg, err := h.svc.Reply(c.UserContext(), services.ReplyInput{
		SenderID: userID,
		ParentID: parentID,
		Subject:  req.Subject,
		Body:     req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message successfully sent.",
		"data":    msg,
	})
}

func (h *MessageHandler) View(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	conversationID, err := uintParam(c, "conversationId")
	if err != nil {
		return respondError(c, services.ErrNotFound)
	}
	view, err := h.svc.View(c.UserContext(), userID, conversationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	userID, ids, err := h.conversationIDs(c)
	if err != nil {
		return err
	}
	affected, err := h.svc.Delete(c.UserContext(), userID, ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Conversation successfully deleted.", "affected": affected})
}

func (h *MessageHandler) Undelete(c *fiber.Ctx) error {
	userID, ids, err := h.conversationIDs(c)
	if err != nil {
		return err
	}
	affected, err := h.svc.Undelete(c.UserContext(), userID, ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Conversation successfully recovered.", "affected": affected})
}

func (h *MessageHandler) conversationIDs(c *fiber.Ctx) (uuid.UUID, []uint, error) {
	userID, err := currentUser(c)
	if err != nil {
		return uuid.Nil, nil, err
	}
	var req ConversationIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return uuid.Nil, nil, fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return uuid.Nil, nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return userID, req.IDs, nil
}

// currentUser reads the user id from the JWT. A bad claim aborts the request
// with 401.
func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	return userID, nil
}

func uintParam(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// ErrorHandler renders errors that escaped a handler, mostly *fiber.Error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"code":    code,
		"message": err.Error(),
	})
}

func respondError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Message,
			"field": verr.Field,
			"code":  verr.Code(),
		})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
