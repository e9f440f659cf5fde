package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/service"
)

type BatchService interface {
	LockNow(ctx context.Context, batchID string) (*domain.Batch, error)
	StartDelivery(ctx context.Context, batchID string) (*domain.Batch, error)
	CompleteBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	CancelBatch(ctx context.Context, batchID, actorID, reason string) (*domain.Batch, error)
	AssignOrder(ctx context.Context, orderID string) (*domain.Order, error)
	VerifyDelivery(ctx context.Context, orderID, code string) (*domain.Order, error)
	AdminOverrideOrderStatus(ctx context.Context, adminID, orderID string, status domain.OrderStatus, reason, ip, userAgent string) (*domain.Order, error)
	OpenBatch(ctx context.Context, shopID string) (*service.OpenBatchView, error)
	ActiveBatches(ctx context.Context, shopID string) ([]repository.BatchWithCount, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/shops/:shopId/batches/open", h.GetOpenBatch)
	v1.Get("/shops/:shopId/batches/active", h.ListActiveBatches)
	v1.Post("/batches/:id/lock", h.LockBatch)
	v1.Post("/batches/:id/start", h.StartDelivery)
	v1.Post("/batches/:id/complete", h.CompleteBatch)
	v1.Post("/batches/:id/cancel", h.CancelBatch)
	v1.Post("/orders/:id/assign", h.AssignOrder)
	v1.Post("/orders/:id/verify", h.VerifyDelivery)
	v1.Post("/admin/orders/:id/status", h.OverrideOrderStatus)

	return nil
}

type cancelBatchRequest struct {
	ActorID string `json:"actorId"`
	Reason  string `json:"reason"`
}

type verifyDeliveryRequest struct {
	Code string `json:"code"`
}

type overrideOrderStatusRequest struct {
	AdminID string `json:"adminId"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

type batchResponse struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shopId"`
	Label        string    `json:"label,omitempty"`
	SortOrder    int       `json:"sortOrder,omitempty"`
	CutoffTime   time.Time `json:"cutoffTime"`
	Status       string    `json:"status"`
	CancelReason *string   `json:"cancelReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

type batchWithCountResponse struct {
	batchResponse
	OrderCount int `json:"orderCount"`
}

type orderResponse struct {
	ID          string     `json:"id"`
	DisplayID   string     `json:"displayId"`
	ShopID      string     `json:"shopId"`
	BuyerID     string     `json:"buyerId"`
	BatchID     *string    `json:"batchId,omitempty"`
	Status      string     `json:"status"`
	HostelBlock string     `json:"hostelBlock"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitempty"`
}

type hostelBlockResponse struct {
	Block  string          `json:"block"`
	Orders []orderResponse `json:"orders"`
}

type openBatchResponse struct {
	Batch       batchResponse         `json:"batch"`
	TotalOrders int                   `json:"totalOrders"`
	Blocks      []hostelBlockResponse `json:"blocks"`
}

func (h *BatchHandler) GetOpenBatch(c *fiber.Ctx) error {
	view, err := h.service.OpenBatch(c.Context(), c.Params("shopId"))
	if err != nil {
		return toHTTPError(err)
	}

	blocks := make([]hostelBlockResponse, 0, len(view.Blocks))
	for _, block := range view.Blocks {
		blocks = append(blocks, hostelBlockResponse{
			Block:  block.Block,
			Orders: toOrderResponses(block.Orders),
		})
	}

	return c.Status(fiber.StatusOK).JSON(openBatchResponse{
		Batch:       toBatchResponse(&view.Batch),
		TotalOrders: view.TotalOrders,
		Blocks:      blocks,
	})
}

func (h *BatchHandler) ListActiveBatches(c *fiber.Ctx) error {
	active, err := h.service.ActiveBatches(c.Context(), c.Params("shopId"))
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]batchWithCountResponse, 0, len(active))
	for i := range active {
		items = append(items, batchWithCountResponse{
			batchResponse: toBatchResponse(&active[i].Batch),
			OrderCount:    active[i].OrderCount,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *BatchHandler) LockBatch(c *fiber.Ctx) error {
	batch, err := h.service.LockNow(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) StartDelivery(c *fiber.Ctx) error {
	batch, err := h.service.StartDelivery(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) CompleteBatch(c *fiber.Ctx) error {
	batch, err := h.service.CompleteBatch(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) CancelBatch(c *fiber.Ctx) error {
	var req cancelBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := h.service.CancelBatch(c.Context(), c.Params("id"), req.ActorID, req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) AssignOrder(c *fiber.Ctx) error {
	order, err := h.service.AssignOrder(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *BatchHandler) VerifyDelivery(c *fiber.Ctx) error {
	var req verifyDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.service.VerifyDelivery(c.Context(), c.Params("id"), req.Code)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *BatchHandler) OverrideOrderStatus(c *fiber.Ctx) error {
	var req overrideOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseOrderStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	order, err := h.service.AdminOverrideOrderStatus(
		c.Context(),
		req.AdminID,
		c.Params("id"),
		status,
		req.Reason,
		c.IP(),
		c.Get(fiber.HeaderUserAgent),
	)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:           b.ID,
		ShopID:       b.ShopID,
		Label:        b.Label,
		SortOrder:    b.SortOrder,
		CutoffTime:   b.CutoffTime,
		Status:       b.Status.String(),
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	responses := make([]orderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}
	return responses
}

func toOrderResponse(o *domain.Order) orderResponse {
	if o == nil {
		return orderResponse{}
	}

	return orderResponse{
		ID:          o.ID,
		DisplayID:   o.DisplayID,
		ShopID:      o.ShopID,
		BuyerID:     o.BuyerID,
		BatchID:     o.BatchID,
		Status:      o.Status.String(),
		HostelBlock: o.HostelBlock,
		DeliveredAt: o.DeliveredAt,
		CreatedAt:   o.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
