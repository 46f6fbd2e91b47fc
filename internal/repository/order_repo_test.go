package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
)

func TestStockDecrements_MergedAndSorted(t *testing.T) {
	items := []domain.OrderItem{
		{ProductID: "c", Name: "Gamma", Quantity: 1},
		{ProductID: "a", Name: "Alpha", Quantity: 2},
		{ProductID: "c", Name: "Gamma", Quantity: 3},
		{ProductID: "b", Name: "Beta", Quantity: 1},
	}

	assert.Equal(t, []stockDecrement{
		{productID: "a", name: "Alpha", quantity: 2},
		{productID: "b", name: "Beta", quantity: 1},
		{productID: "c", name: "Gamma", quantity: 4},
	}, stockDecrements(items))

	reversed := []domain.OrderItem{items[3], items[2], items[1], items[0]}
	assert.Equal(t, stockDecrements(items), stockDecrements(reversed), "lock order ignores cart order")
}

func TestTranslatePqError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{pgUniqueViolation, domain.ErrAlreadyExists},
		{pgForeignKeyViolation, domain.ErrNotFound},
		{pgCheckViolation, domain.ErrInvalidInput},
		{pgInvalidTextRep, domain.ErrNotFound},
		{pgDeadlockDetected, domain.ErrConflict},
		{pgSerializationFail, domain.ErrConflict},
	}
	for _, tc := range tests {
		err := fmt.Errorf("could not update stock: %w", &pq.Error{Code: pq.ErrorCode(tc.code)})
		assert.ErrorIs(t, translatePqError(err, "product x"), tc.want, tc.code)
	}

	plain := errors.New("connection reset")
	assert.Equal(t, plain, translatePqError(plain, "product x"))
}
