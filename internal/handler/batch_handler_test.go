package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hostelcart/batch-engine/internal/domain"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/service"
	"github.com/hostelcart/batch-engine/internal/transport"
	"go.uber.org/zap"
)

type stubBatchService struct {
	lockNowFn        func(ctx context.Context, batchID string) (*domain.Batch, error)
	startDeliveryFn  func(ctx context.Context, batchID string) (*domain.Batch, error)
	completeBatchFn  func(ctx context.Context, batchID string) (*domain.Batch, error)
	cancelBatchFn    func(ctx context.Context, batchID, actorID, reason string) (*domain.Batch, error)
	assignOrderFn    func(ctx context.Context, orderID string) (*domain.Order, error)
	verifyDeliveryFn func(ctx context.Context, orderID, code string) (*domain.Order, error)
	adminOverrideFn  func(ctx context.Context, adminID, orderID string, status domain.OrderStatus, reason, ip, userAgent string) (*domain.Order, error)
	openBatchFn      func(ctx context.Context, shopID string) (*service.OpenBatchView, error)
	activeBatchesFn  func(ctx context.Context, shopID string) ([]repository.BatchWithCount, error)
}

func (s *stubBatchService) LockNow(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.lockNowFn(ctx, batchID)
}

func (s *stubBatchService) StartDelivery(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.startDeliveryFn(ctx, batchID)
}

func (s *stubBatchService) CompleteBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.completeBatchFn(ctx, batchID)
}

func (s *stubBatchService) CancelBatch(ctx context.Context, batchID, actorID, reason string) (*domain.Batch, error) {
	return s.cancelBatchFn(ctx, batchID, actorID, reason)
}

func (s *stubBatchService) AssignOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.assignOrderFn(ctx, orderID)
}

func (s *stubBatchService) VerifyDelivery(ctx context.Context, orderID, code string) (*domain.Order, error) {
	return s.verifyDeliveryFn(ctx, orderID, code)
}

func (s *stubBatchService) AdminOverrideOrderStatus(ctx context.Context, adminID, orderID string, status domain.OrderStatus, reason, ip, userAgent string) (*domain.Order, error) {
	return s.adminOverrideFn(ctx, adminID, orderID, status, reason, ip, userAgent)
}

func (s *stubBatchService) OpenBatch(ctx context.Context, shopID string) (*service.OpenBatchView, error) {
	return s.openBatchFn(ctx, shopID)
}

func (s *stubBatchService) ActiveBatches(ctx context.Context, shopID string) ([]repository.BatchWithCount, error) {
	return s.activeBatchesFn(ctx, shopID)
}

var _ BatchService = (*stubBatchService)(nil)

func newTestApp(t *testing.T, svc BatchService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterBatchRoutes(app, svc); err != nil {
		t.Fatalf("RegisterBatchRoutes() error = %v", err)
	}
	return app
}

func decodeBody(t *testing.T, body io.Reader, out any) {
	t.Helper()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal body %s error = %v", data, err)
	}
}

func TestLockBatchEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		lockNowFn: func(ctx context.Context, batchID string) (*domain.Batch, error) {
			if batchID != "b1" {
				t.Fatalf("batchID = %s, want b1", batchID)
			}
			return &domain.Batch{ID: "b1", ShopID: "s1", Status: domain.BatchStatusLocked, CutoffTime: time.Now()}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/batches/b1/lock", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	decodeBody(t, resp.Body, &body)
	if body["status"] != "LOCKED" {
		t.Fatalf("status = %v, want LOCKED", body["status"])
	}
}

func TestLockBatchConflictMapsTo409(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		lockNowFn: func(ctx context.Context, batchID string) (*domain.Batch, error) {
			return nil, fmt.Errorf("%w: batch is not open", domain.ErrConflict)
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/batches/b1/lock", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestVerifyDeliveryEndpoint(t *testing.T) {
	t.Parallel()

	deliveredAt := time.Date(2026, 3, 14, 13, 5, 0, 0, time.UTC)
	svc := &stubBatchService{
		verifyDeliveryFn: func(ctx context.Context, orderID, code string) (*domain.Order, error) {
			if orderID != "o1" || code != "4321" {
				t.Fatalf("verify args = %s/%s, want o1/4321", orderID, code)
			}
			return &domain.Order{ID: "o1", Status: domain.OrderStatusCompleted, DeliveredAt: &deliveredAt}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/v1/orders/o1/verify", strings.NewReader(`{"code":"4321"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	decodeBody(t, resp.Body, &body)
	if body["status"] != "COMPLETED" {
		t.Fatalf("status = %v, want COMPLETED", body["status"])
	}
	if body["deliveredAt"] == nil {
		t.Fatal("deliveredAt should be present")
	}
}

func TestVerifyDeliveryMismatchMapsTo400(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		verifyDeliveryFn: func(ctx context.Context, orderID, code string) (*domain.Order, error) {
			return nil, fmt.Errorf("%w: delivery code does not match", domain.ErrValidation)
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/v1/orders/o1/verify", strings.NewReader(`{"code":"0000"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelBatchPassesReasonAndActor(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		cancelBatchFn: func(ctx context.Context, batchID, actorID, reason string) (*domain.Batch, error) {
			if actorID != "vendor-1" {
				t.Fatalf("actorID = %s, want vendor-1", actorID)
			}
			if reason != "supplier out of stock" {
				t.Fatalf("reason = %q, want supplier out of stock", reason)
			}
			cancelReason := reason
			return &domain.Batch{ID: batchID, Status: domain.BatchStatusCancelled, CancelReason: &cancelReason}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/v1/batches/b1/cancel",
		strings.NewReader(`{"actorId":"vendor-1","reason":"supplier out of stock"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	decodeBody(t, resp.Body, &body)
	if body["cancelReason"] != "supplier out of stock" {
		t.Fatalf("cancelReason = %v, want supplier out of stock", body["cancelReason"])
	}
}

func TestOverrideOrderStatusParsesStatus(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		adminOverrideFn: func(ctx context.Context, adminID, orderID string, status domain.OrderStatus, reason, ip, userAgent string) (*domain.Order, error) {
			if adminID != "admin-1" {
				t.Fatalf("adminID = %s, want admin-1", adminID)
			}
			if status != domain.OrderStatusCompleted {
				t.Fatalf("status = %s, want COMPLETED", status)
			}
			return &domain.Order{ID: orderID, Status: status}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/v1/admin/orders/o1/status",
		strings.NewReader(`{"adminId":"admin-1","status":"completed","reason":"confirmed by phone"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestOverrideOrderStatusInvalidStatusMapsTo400(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubBatchService{})

	req := httptest.NewRequest("POST", "/v1/admin/orders/o1/status",
		strings.NewReader(`{"adminId":"admin-1","status":"TELEPORTED"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetOpenBatchReturnsGroupedView(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		openBatchFn: func(ctx context.Context, shopID string) (*service.OpenBatchView, error) {
			if shopID != "s1" {
				t.Fatalf("shopID = %s, want s1", shopID)
			}
			return &service.OpenBatchView{
				Batch:       domain.Batch{ID: "b1", ShopID: "s1", Status: domain.BatchStatusOpen},
				TotalOrders: 2,
				Blocks: []service.HostelBlockGroup{
					{Block: "A", Orders: []domain.Order{{ID: "o1", HostelBlock: "A"}, {ID: "o2", HostelBlock: "A"}}},
				},
			}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/shops/s1/batches/open", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		TotalOrders int `json:"totalOrders"`
		Blocks      []struct {
			Block  string           `json:"block"`
			Orders []map[string]any `json:"orders"`
		} `json:"blocks"`
	}
	decodeBody(t, resp.Body, &body)
	if body.TotalOrders != 2 {
		t.Fatalf("totalOrders = %d, want 2", body.TotalOrders)
	}
	if len(body.Blocks) != 1 || body.Blocks[0].Block != "A" || len(body.Blocks[0].Orders) != 2 {
		t.Fatalf("blocks = %+v, want one block A with 2 orders", body.Blocks)
	}
}

func TestGetOpenBatchNotFoundMapsTo404(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		openBatchFn: func(ctx context.Context, shopID string) (*service.OpenBatchView, error) {
			return nil, domain.ErrNotFound
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/shops/s1/batches/open", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListActiveBatchesEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		activeBatchesFn: func(ctx context.Context, shopID string) ([]repository.BatchWithCount, error) {
			return []repository.BatchWithCount{
				{Batch: domain.Batch{ID: "b1", Status: domain.BatchStatusLocked}, OrderCount: 3},
				{Batch: domain.Batch{ID: "b2", Status: domain.BatchStatusInTransit}, OrderCount: 1},
			}, nil
		},
	}
	app := newTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/shops/s1/batches/active", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			OrderCount int    `json:"orderCount"`
		} `json:"data"`
	}
	decodeBody(t, resp.Body, &body)
	if len(body.Data) != 2 {
		t.Fatalf("data = %d items, want 2", len(body.Data))
	}
	if body.Data[0].OrderCount != 3 || body.Data[1].Status != "IN_TRANSIT" {
		t.Fatalf("data = %+v, want counts and statuses mapped", body.Data)
	}
}
