package cart

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type failingStorage struct{ saves int }

func (f *failingStorage) Load() ([]byte, error) { return nil, errors.New("disk gone") }
func (f *failingStorage) Save([]byte) error {
	f.saves++
	return errors.New("disk gone")
}

func TestTotals(t *testing.T) {
	c := New(NewMemoryStorage(nil), quietLogger())
	c.AddToCart(Item{ProductID: "A", Name: "A", Price: 10, Quantity: 2})
	c.AddToCart(Item{ProductID: "B", Name: "B", Price: 5, Quantity: 1})

	assert.Equal(t, 3, c.TotalItems())
	assert.Equal(t, 25.00, c.TotalPrice())
}

func TestTotalPrice_Decimal(t *testing.T) {
	c := New(NewMemoryStorage(nil), quietLogger())
	c.AddToCart(Item{ProductID: "A", Price: 0.1, Quantity: 3})
	assert.Equal(t, 0.3, c.TotalPrice())
}

func TestAddToCart_MergesExisting(t *testing.T) {
	c := New(NewMemoryStorage(nil), quietLogger())
	c.AddToCart(Item{ProductID: "A", Price: 10})
	c.AddToCart(Item{ProductID: "A", Price: 10, Quantity: 3})

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
	assert.True(t, c.IsInCart("A"))
	assert.Equal(t, 4, c.CartItemQuantity("A"))
	assert.Zero(t, c.CartItemQuantity("B"))
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	viaUpdate := New(NewMemoryStorage(nil), quietLogger())
	viaRemove := New(NewMemoryStorage(nil), quietLogger())
	for _, c := range []*Store{viaUpdate, viaRemove} {
		c.AddToCart(Item{ProductID: "A", Price: 1, Quantity: 2})
		c.AddToCart(Item{ProductID: "B", Price: 2, Quantity: 1})
	}

	viaUpdate.UpdateQuantity("A", 0)
	viaRemove.RemoveFromCart("A")
	assert.Equal(t, viaRemove.Items(), viaUpdate.Items())

	viaUpdate.UpdateQuantity("B", 7)
	assert.Equal(t, 7, viaUpdate.CartItemQuantity("B"))

	viaUpdate.UpdateQuantity("missing", 3)
	assert.False(t, viaUpdate.IsInCart("missing"))
}

func TestPersistsAndHydrates(t *testing.T) {
	storage := NewMemoryStorage(nil)
	c := New(storage, quietLogger())
	c.AddToCart(Item{ProductID: "A", Name: "Mug", Price: 4.5, Quantity: 2, ImageURL: "http://img"})

	raw, _ := storage.Load()
	assert.JSONEq(t, `[{"productId":"A","name":"Mug","price":4.5,"imageUrl":"http://img","quantity":2}]`, string(raw))

	again := New(storage, quietLogger())
	assert.Equal(t, c.Items(), again.Items())

	again.ClearCart()
	raw, _ = storage.Load()
	assert.Equal(t, "[]", string(raw))
	assert.Zero(t, again.TotalItems())
}

func TestHydrate_CorruptDataStartsEmpty(t *testing.T) {
	c := New(NewMemoryStorage([]byte("{not json")), quietLogger())
	assert.Empty(t, c.Items())

	c = New(NewMemoryStorage([]byte(`[{"productId":"","quantity":1},{"productId":"A","quantity":0},{"productId":"B","price":2,"quantity":1},{"productId":"B","price":2,"quantity":2}]`)), quietLogger())
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	storage := &failingStorage{}
	c := New(storage, quietLogger())
	c.AddToCart(Item{ProductID: "A", Price: 1})

	assert.Equal(t, 1, storage.saves)
	assert.Equal(t, 1, c.TotalItems())
}

func TestLines(t *testing.T) {
	c := New(NewMemoryStorage(nil), quietLogger())
	c.AddToCart(Item{ProductID: "A", Quantity: 2})
	c.AddToCart(Item{ProductID: "B", Quantity: 1})

	assert.Equal(t, []domain.OrderLine{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}, c.Lines())
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	storage := NewFileStorage(path)

	data, err := storage.Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	c := New(storage, quietLogger())
	c.AddToCart(Item{ProductID: "A", Price: 3, Quantity: 2})

	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, 6.0, New(storage, quietLogger()).TotalPrice())
}
