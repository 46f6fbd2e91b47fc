package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

var _ domain.OrderUseCase = (*orderUseCase)(nil)

type orderUseCase struct {
	orderRepo   domain.OrderRepository
	productRepo domain.ProductRepository
	userRepo    domain.UserRepository
	idempotency domain.IdempotencyStore
	log         *logrus.Logger
}

// NewOrderUseCase wires the order workflow. idem may be nil, in which case
// idempotency keys are ignored.
func NewOrderUseCase(
	orderRepo domain.OrderRepository,
	productRepo domain.ProductRepository,
	userRepo domain.UserRepository,
	idem domain.IdempotencyStore,
	logger *logrus.Logger,
) domain.OrderUseCase {
	return &orderUseCase{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		idempotency: idem,
		log:         logger,
	}
}

func validateOrderRequest(req *domain.CreateOrderRequest) error {
	if req == nil {
		return fmt.Errorf("order request is empty: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("user ID is required: %w", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("order must contain at least one item: %w", domain.ErrInvalidInput)
	}
	for i, line := range req.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("item %d: product ID is required: %w", i, domain.ErrInvalidInput)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("item %d (product %s): quantity must be at least 1: %w", i, line.ProductID, domain.ErrInvalidInput)
		}
	}
	if missing := req.ShippingAddress.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("shipping address is missing %s: %w", strings.Join(missing, ", "), domain.ErrInvalidInput)
	}
	if req.Status != "" && req.Status != domain.StatusProcessing {
		return fmt.Errorf("order can only be created with '%s' status: %w", domain.StatusProcessing, domain.ErrInvalidInput)
	}
	return nil
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest, idempotencyKey string) (order *domain.Order, err error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" && uc.idempotency != nil {
		reserved, rErr := uc.idempotency.Reserve(ctx, idempotencyKey)
		if rErr != nil {
			uc.log.Errorf("Use Case: Failed to reserve idempotency key %s: %v", idempotencyKey, rErr)
			return nil, rErr
		}
		if !reserved {
			return uc.replayOrder(ctx, idempotencyKey)
		}
		defer func() {
			if err == nil {
				return
			}
			// The key is released with a fresh context so a cancelled request
			// still lets the client retry.
			if relErr := uc.idempotency.Release(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
				uc.log.Errorf("Use Case: Failed to release idempotency key %s: %v", idempotencyKey, relErr)
			}
		}()
	}

	if err := validateOrderRequest(req); err != nil {
		uc.log.Warnf("Use Case: Order validation failed: %v", err)
		return nil, err
	}
	uc.log.Infof("Use Case: Validated order request for user %s with %d lines", req.UserID, len(req.Items))

	if _, err := uc.userRepo.GetUserByID(ctx, req.UserID); err != nil {
		uc.log.Warnf("Use Case: Order rejected, user %s could not be loaded: %v", req.UserID, err)
		return nil, err
	}

	requested := make(map[string]int, len(req.Items))
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := uc.productRepo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			uc.log.Warnf("Use Case: Product lookup failed for %s: %v", line.ProductID, err)
			return nil, err
		}

		requested[product.ID] += line.Quantity
		if product.Stock < requested[product.ID] {
			uc.log.Warnf("Use Case: Insufficient stock for product %s (requested total: %d, available: %d)",
				product.ID, requested[product.ID], product.Stock)
			return nil, fmt.Errorf("%w for %s", domain.ErrInsufficientStock, product.Name)
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
		})
	}

	pending := &domain.Order{
		UserID:          req.UserID,
		Items:           items,
		Total:           domain.OrderTotal(items),
		Status:          domain.StatusProcessing,
		ShippingAddress: req.ShippingAddress,
	}

	uc.log.Infof("Use Case: Placing order for user %s, total %.2f", pending.UserID, pending.Total)
	order, err = uc.orderRepo.PlaceOrder(ctx, pending)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			uc.log.Warnf("Use Case: Stock changed while placing order for user %s: %v", pending.UserID, err)
		} else {
			uc.log.Errorf("Use Case: Repository failed to place order for user %s: %v", pending.UserID, err)
		}
		return nil, err
	}

	if idempotencyKey != "" && uc.idempotency != nil {
		// The order exists; a failure here only costs the replay.
		if cErr := uc.idempotency.Complete(context.WithoutCancel(ctx), idempotencyKey, order.ID); cErr != nil {
			uc.log.Errorf("Use Case: Failed to bind idempotency key %s to order %s: %v", idempotencyKey, order.ID, cErr)
		}
	}

	uc.log.Infof("Use Case: Order created successfully with ID %s for user %s", order.ID, order.UserID)
	return order, nil
}

// replayOrder answers a repeated idempotency key with the order the key
// already produced.
func (uc *orderUseCase) replayOrder(ctx context.Context, idempotencyKey string) (*domain.Order, error) {
	orderID, err := uc.idempotency.Lookup(ctx, idempotencyKey)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to look up idempotency key %s: %v", idempotencyKey, err)
		return nil, err
	}
	if orderID == "" {
		uc.log.Warnf("Use Case: Order request with idempotency key %s is still in progress", idempotencyKey)
		return nil, fmt.Errorf("request with idempotency key %s is still in progress: %w", idempotencyKey, domain.ErrDuplicateRequest)
	}

	uc.log.Infof("Use Case: Replaying order %s for idempotency key %s", orderID, idempotencyKey)
	return uc.orderRepo.GetOrderByID(ctx, orderID)
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("order ID is required: %w", domain.ErrInvalidInput)
	}
	uc.log.Infof("Use Case: Attempting to get order with ID %s", id)
	order, err := uc.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to get order ID %s: %v", id, err)
		return nil, err
	}
	return order, nil
}

func (uc *orderUseCase) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.Status != "" && !domain.IsValidStatus(filter.Status) {
		return nil, fmt.Errorf("unknown order status '%s': %w", filter.Status, domain.ErrInvalidInput)
	}

	orders, err := uc.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to list orders: %v", err)
		return nil, err
	}
	uc.log.Infof("Use Case: Listed %d orders", len(orders))
	return orders, nil
}

func (uc *orderUseCase) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("order ID is required: %w", domain.ErrInvalidInput)
	}
	if !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("invalid target order status '%s': %w", status, domain.ErrInvalidInput)
	}

	uc.log.Infof("Use Case: Attempting to update status for order ID %s to '%s'", id, status)
	current, err := uc.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Could not get current order %s for status update: %v", id, err)
		return nil, err
	}

	if !current.Status.CanTransitionTo(status) {
		uc.log.Warnf("Use Case: Rejected transition of order %s from '%s' to '%s'", id, current.Status, status)
		return nil, fmt.Errorf("cannot move order from %s to %s: %w", current.Status, status, domain.ErrInvalidTransition)
	}

	updated, err := uc.orderRepo.UpdateOrderStatus(ctx, id, current.Status, status)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to update status of order %s: %v", id, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Order %s moved from '%s' to '%s'", id, current.Status, updated.Status)
	return updated, nil
}
