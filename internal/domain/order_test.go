package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusProcessing, StatusProcessing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusDelivered))
	assert.False(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus(""))
}

func TestOrderTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "a", Price: 10, Quantity: 2},
		{ProductID: "b", Price: 5, Quantity: 1},
	}
	assert.Equal(t, 25.00, OrderTotal(items))

	assert.Equal(t, 0.3, OrderTotal([]OrderItem{{Price: 0.1, Quantity: 3}}))
	assert.Equal(t, 299.97, OrderTotal([]OrderItem{{Price: 199.99, Quantity: 1}, {Price: 49.99, Quantity: 2}}))
	assert.Equal(t, 0.0, OrderTotal(nil))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 59.97, LineTotal(19.99, 3))
}

func TestShippingAddressMissingFields(t *testing.T) {
	addr := ShippingAddress{Street: "1 Main", City: " ", Country: "USA"}
	assert.Equal(t, []string{"city", "state", "zipCode"}, addr.MissingFields())

	full := ShippingAddress{Street: "1 Main", City: "NYC", State: "NY", ZipCode: "10001", Country: "USA"}
	assert.Empty(t, full.MissingFields())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}
