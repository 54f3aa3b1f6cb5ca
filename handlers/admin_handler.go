package handlers

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/anjiri1684/private_messages/database"
	"github.com/anjiri1684/private_messages/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func GetAllUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	offset := (page - 1) * limit

	var users []models.User
	var totalUsers int64

	query := database.DB.Model(&models.User{})
	if search != "" {
		searchTerm := "%" + search + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm, searchTerm)
	}

	query = query.Session(&gorm.Session{})

	if err := query.Count(&totalUsers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if err := query.Order("username ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(fiber.Map{
		"data": users,
		"meta": fiber.Map{
			"total_users":  totalUsers,
			"total_pages":  int(math.Ceil(float64(totalUsers) / float64(limit))),
			"current_page": page,
		},
	})
}

// ToggleUserStatus enables or disables an account. Disabled users stop being
// valid message recipients.
func ToggleUserStatus(c *fiber.Ctx) error {
	userID := c.Params("userId")
	type Request struct {
		IsActive bool `json:"is_active"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	res := database.DB.Model(&models.User{}).Where("id = ?", userID).Update("is_active", req.IsActive)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{"message": "User status updated successfully."})
}

// PurgeDeletedMessages runs the retention sweep on demand. Query parameters:
// dry_run (bool) and max_age (Go duration, defaults to the configured age).
func (h *MessageHandler) PurgeDeletedMessages(c *fiber.Ctx) error {
	dryRun := c.QueryBool("dry_run", false)
	maxAge := h.purgeMaxAge
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid max_age"})
		}
		maxAge = d
	}

	if dryRun {
		candidates, err := h.svc.PurgeCandidates(c.UserContext(), maxAge)
		if err != nil {
			return respondError(c, err)
		}
		ids := make([]uint, len(candidates))
		for i, m := range candidates {
			ids[i] = m.ID
		}
		return c.JSON(fiber.Map{
			"dry_run": true,
			"max_age": maxAge.String(),
			"count":   len(ids),
			"ids":     ids,
		})
	}

	deleted, err := h.svc.PurgeDeleted(c.UserContext(), maxAge, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"dry_run": false,
		"max_age": maxAge.String(),
		"count":   deleted,
	})
}
