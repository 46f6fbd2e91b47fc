package domain

import (
	"context"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// delivered and cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	Street  string `json:"street" yaml:"street"`
	City    string `json:"city" yaml:"city"`
	State   string `json:"state" yaml:"state"`
	ZipCode string `json:"zipCode" yaml:"zipCode"`
	Country string `json:"country" yaml:"country"`
}

// MissingFields lists the json names of empty address fields.
func (a ShippingAddress) MissingFields() []string {
	var missing []string
	fields := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderItem is the snapshot of a product taken when the order was placed.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	User            *UserSummary    `json:"user,omitempty"`
	Items           []OrderItem     `json:"items"`
	Total           float64         `json:"total"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// StockReserved is set when placing the order took its quantities out of
	// stock. Only such orders give stock back on cancellation.
	StockReserved bool `json:"-"`
}

// OrderLine is one requested line item of a checkout.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID          string          `json:"userId"`
	Items           []OrderLine     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Status          OrderStatus     `json:"status,omitempty"`
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
}

type OrderRepository interface {
	// PlaceOrder stores the order and decrements stock for every item in one
	// atomic unit, marking it StockReserved. It fails with
	// ErrInsufficientStock, leaving nothing written, if any product no longer
	// has enough stock.
	PlaceOrder(ctx context.Context, order *Order) (*Order, error)
	// InsertOrder stores the order without touching stock.
	InsertOrder(ctx context.Context, order *Order) (*Order, error)
	GetOrderByID(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	// UpdateOrderStatus moves the order from one status to another only if it
	// is still in from. Moving to cancelled returns the items to stock when
	// the order is StockReserved.
	UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) (*Order, error)
	CountOrders(ctx context.Context) (int, error)
}

type OrderUseCase interface {
	// CreateOrder validates req against live stock and places the order.
	// Repeating a non-empty idempotencyKey returns the order the key already
	// created, or ErrDuplicateRequest while that first request is in flight.
	CreateOrder(ctx context.Context, req *CreateOrderRequest, idempotencyKey string) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (*Order, error)
}
