// Package cart keeps the shopper's cart and mirrors every change to a
// Storage port as a JSON array of items.
package cart

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Storage holds one serialized cart snapshot.
type Storage interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type Store struct {
	mu      sync.Mutex
	items   []Item
	storage Storage
	log     *logrus.Logger
}

// New hydrates the cart from storage. Missing or unreadable data starts an
// empty cart.
func New(storage Storage, logger *logrus.Logger) *Store {
	s := &Store{storage: storage, log: logger}

	data, err := storage.Load()
	if err != nil {
		logger.Warnf("Cart: Could not load saved cart, starting empty: %v", err)
		return s
	}
	if len(data) == 0 {
		return s
	}
	var saved []Item
	if err := json.Unmarshal(data, &saved); err != nil {
		logger.Warnf("Cart: Saved cart is corrupt, starting empty: %v", err)
		return s
	}
	for _, item := range saved {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		s.merge(item)
	}
	return s
}

func (s *Store) index(productID string) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) merge(item Item) {
	if i := s.index(item.ProductID); i >= 0 {
		s.items[i].Quantity += item.Quantity
		return
	}
	s.items = append(s.items, item)
}

// persist writes the snapshot. Failures are logged, never returned. Callers hold mu.
func (s *Store) persist() {
	snapshot := s.items
	if snapshot == nil {
		snapshot = []Item{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Errorf("Cart: Failed to encode cart: %v", err)
		return
	}
	if err := s.storage.Save(data); err != nil {
		s.log.Errorf("Cart: Failed to save cart: %v", err)
	}
}

// AddToCart merges by product id. A quantity below 1 counts as 1.
func (s *Store) AddToCart(item Item) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge(item)
	s.persist()
}

func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(productID); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.persist()
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveFromCart(productID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(productID); i >= 0 {
		s.items[i].Quantity = quantity
	}
	s.persist()
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persist()
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item{}, s.items...)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2).InexactFloat64()
}

func (s *Store) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index(productID) >= 0
}

func (s *Store) CartItemQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(productID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

// Lines converts the cart into order request lines.
func (s *Store) Lines() []domain.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.OrderLine, 0, len(s.items))
	for _, item := range s.items {
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
