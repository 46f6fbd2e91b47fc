package domain

import (
	"context"
	"time"
)

type Product struct {
	ID          string    `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Price       float64   `json:"price" yaml:"price"`
	Category    string    `json:"category" yaml:"category"`
	ImageURL    string    `json:"imageUrl" yaml:"imageUrl"`
	Stock       int       `json:"stock" yaml:"stock"`
	Featured    bool      `json:"featured" yaml:"featured"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// ProductFilter narrows a catalog listing. Zero values match everything.
type ProductFilter struct {
	Category string
	Featured *bool
	Search   string
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProductByID(ctx context.Context, id string) (*Product, error)
	GetProductByName(ctx context.Context, name string) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	CountProducts(ctx context.Context) (int, error)
}

type ProductUseCase interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}
