// Package memory holds the catalog, users and orders in process memory. It
// implements the same repository contracts as the PostgreSQL backend,
// including atomic order placement, and is used for local demos and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	users    map[string]*domain.User
	orders   map[string]*domain.Order
	log      *logrus.Logger
	now      func() time.Time
	last     time.Time
}

var (
	_ domain.ProductRepository = (*Store)(nil)
	_ domain.UserRepository    = (*Store)(nil)
	_ domain.OrderRepository   = (*Store)(nil)
)

func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		products: make(map[string]*domain.Product),
		users:    make(map[string]*domain.User),
		orders:   make(map[string]*domain.Order),
		log:      logger,
		now:      time.Now,
	}
}

// tick returns a strictly increasing timestamp so that newest-first ordering
// is stable even when the clock resolution is coarse. Callers hold mu.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *Store) CreateProduct(_ context.Context, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Price < 0 || product.Stock < 0 {
		return nil, fmt.Errorf("product '%s' has negative price or stock: %w", product.Name, domain.ErrInvalidInput)
	}
	for _, existing := range s.products {
		if existing.Name == product.Name {
			return nil, fmt.Errorf("product '%s' %w", product.Name, domain.ErrAlreadyExists)
		}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := s.tick()
	product.CreatedAt, product.UpdatedAt = now, now
	stored := *product
	s.products[stored.ID] = &stored

	s.log.Debugf("Memory: Product created with ID: %s, Name: %s", stored.ID, stored.Name)
	out := stored
	return &out, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s %w", id, domain.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (s *Store) GetProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			out := *p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("product named '%s' %w", name, domain.ErrNotFound)
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := []domain.Product{}
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Featured != products[j].Featured {
			return products[i].Featured
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Store) CountProducts(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

// SetProductPrice changes a live product price. Past orders keep their snapshot.
func (s *Store) SetProductPrice(id string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s %w", id, domain.ErrNotFound)
	}
	p.Price = price
	p.UpdatedAt = s.tick()
	return nil
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return nil, fmt.Errorf("user with email '%s' %w", user.Email, domain.ErrAlreadyExists)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.tick()
	stored := *user
	s.users[stored.ID] = &stored

	s.log.Debugf("Memory: User created with ID: %s, Email: %s", stored.ID, stored.Email)
	out := stored
	return &out, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s %w", id, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user with email %s %w", email, domain.ErrNotFound)
}

func (s *Store) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) PlaceOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requested := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		requested[item.ProductID] += item.Quantity
	}
	for _, item := range order.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s %w", item.ProductID, domain.ErrNotFound)
		}
		if p.Stock < requested[item.ProductID] {
			s.log.Warnf("Memory: Stock for product %s fell below %d before commit", p.ID, requested[item.ProductID])
			return nil, fmt.Errorf("%w for %s", domain.ErrInsufficientStock, item.Name)
		}
	}
	if err := s.checkOrderRefs(order); err != nil {
		return nil, err
	}

	now := s.tick()
	for id, qty := range requested {
		p := s.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
	}
	order.StockReserved = true
	return s.insertLocked(order, now), nil
}

func (s *Store) InsertOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOrderRefs(order); err != nil {
		return nil, err
	}
	order.StockReserved = false
	return s.insertLocked(order, s.tick()), nil
}

func (s *Store) checkOrderRefs(order *domain.Order) error {
	if _, ok := s.users[order.UserID]; !ok {
		return fmt.Errorf("order for user %s references a record that does not exist: %w", order.UserID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) insertLocked(order *domain.Order, now time.Time) *domain.Order {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt, order.UpdatedAt = now, now
	stored := *order
	stored.User = nil
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	s.orders[stored.ID] = &stored

	s.log.Debugf("Memory: Order %s stored with %d items", stored.ID, len(stored.Items))
	return s.viewLocked(&stored)
}

// viewLocked returns a detached copy with the user summary attached.
func (s *Store) viewLocked(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem{}, o.Items...)
	if u, ok := s.users[o.UserID]; ok {
		out.User = &domain.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return &out
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s %w", id, domain.ErrNotFound)
	}
	return s.viewLocked(o), nil
}

func (s *Store) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := []domain.Order{}
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, *s.viewLocked(o))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s %w", id, domain.ErrNotFound)
	}
	if o.Status != from {
		return nil, fmt.Errorf("order %s is now %s: %w", id, o.Status, domain.ErrInvalidTransition)
	}

	now := s.tick()
	if to == domain.StatusCancelled && o.StockReserved {
		for _, item := range o.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.Stock += item.Quantity
				p.UpdatedAt = now
			}
		}
	}
	o.Status = to
	o.UpdatedAt = now
	return s.viewLocked(o), nil
}

func (s *Store) CountOrders(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
}
