package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationHandler serves the in-app notification feed written by the
// notification queue consumer.
type NotificationHandler struct {
	notifications repository.NotificationRepository
}

func NewNotificationHandler(notifications repository.NotificationRepository) (*NotificationHandler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	return &NotificationHandler{notifications: notifications}, nil
}

func RegisterNotificationRoutes(router fiber.Router, notifications repository.NotificationRepository) error {
	h, err := NewNotificationHandler(notifications)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/users/:userId/notifications", h.ListNotifications)
	v1.Post("/notifications/:id/read", h.MarkRead)

	return nil
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	ActionURL *string   `json:"actionUrl,omitempty"`
	Read      bool      `json:"read"`
	Broadcast bool      `json:"broadcast"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultNotificationLimit)
	if limit < 1 || limit > maxNotificationLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxNotificationLimit))
	}

	notifications, err := h.notifications.ListForUser(c.Context(), c.Params("userId"), limit)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		n := notifications[i]
		items = append(items, notificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Category:  n.Category.String(),
			ActionURL: n.ActionURL,
			Read:      n.Read,
			Broadcast: n.RecipientID == nil,
			CreatedAt: n.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.notifications.MarkRead(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"read":           true,
	})
}
