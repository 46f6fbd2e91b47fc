// Package checkout turns the shopper's cart and shipping form into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront/internal/cart"
	"storefront/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

var ErrEmptyCart = errors.New("your cart is empty")

type Form struct {
	Name    string
	Email   string
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// FieldErrors maps form field names to a message for the shopper.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, e[f])
	}
	return strings.Join(parts, "; ")
}

// Validate returns nil or FieldErrors.
func (f Form) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required"
	}
	switch email := strings.TrimSpace(f.Email); {
	case email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		errs["email"] = "Please enter a valid email address"
	}
	if strings.TrimSpace(f.Street) == "" {
		errs["street"] = "Street address is required"
	}
	if strings.TrimSpace(f.City) == "" {
		errs["city"] = "City is required"
	}
	if strings.TrimSpace(f.State) == "" {
		errs["state"] = "State is required"
	}
	switch zip := strings.TrimSpace(f.ZipCode); {
	case zip == "":
		errs["zipCode"] = "ZIP code is required"
	case !zipPattern.MatchString(zip):
		errs["zipCode"] = "Please enter a valid ZIP code"
	}
	if strings.TrimSpace(f.Country) == "" {
		errs["country"] = "Country is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f Form) address() domain.ShippingAddress {
	return domain.ShippingAddress{
		Street:  strings.TrimSpace(f.Street),
		City:    strings.TrimSpace(f.City),
		State:   strings.TrimSpace(f.State),
		ZipCode: strings.TrimSpace(f.ZipCode),
		Country: strings.TrimSpace(f.Country),
	}
}

// API is the part of the storefront client checkout needs.
type API interface {
	CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.Order, error)
}

type Service struct {
	api  API
	cart *cart.Store
	log  *logrus.Logger
}

func NewService(api API, c *cart.Store, logger *logrus.Logger) *Service {
	return &Service{api: api, cart: c, log: logger}
}

// PlaceOrder validates the form, resolves the shopper and submits the cart.
// The cart is cleared only after the order is accepted.
func (s *Service) PlaceOrder(ctx context.Context, form Form, idempotencyKey string) (*domain.Order, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	user, err := s.api.CreateUser(ctx, domain.CreateUserRequest{
		Email: strings.TrimSpace(form.Email),
		Name:  strings.TrimSpace(form.Name),
		Role:  domain.RoleCustomer,
	})
	if err != nil {
		s.log.Warnf("Checkout: Could not resolve user %s: %v", form.Email, err)
		return nil, fmt.Errorf("failed to create or find user: %w", err)
	}

	order, err := s.api.CreateOrder(ctx, domain.CreateOrderRequest{
		UserID:          user.ID,
		Items:           lines,
		ShippingAddress: form.address(),
	}, idempotencyKey)
	if err != nil {
		s.log.Warnf("Checkout: Order for user %s failed: %v", user.ID, err)
		return nil, err
	}

	s.cart.ClearCart()
	s.log.Infof("Checkout: Order %s placed for %s, total %.2f", order.ID, user.Email, order.Total)
	return order, nil
}
