// Package seed holds the demo catalog loaded by POST /api/init.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"storefront/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

type OrderLine struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

type Order struct {
	User            string                 `yaml:"user"`
	Status          domain.OrderStatus     `yaml:"status"`
	Items           []OrderLine            `yaml:"items"`
	ShippingAddress domain.ShippingAddress `yaml:"shippingAddress"`
}

type Catalog struct {
	// AdminEmail is written last and marks a store that was fully seeded.
	AdminEmail string           `yaml:"admin_email"`
	Products   []domain.Product `yaml:"products"`
	Users      []domain.User    `yaml:"users"`
	Orders     []Order          `yaml:"orders"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every order references a listed user and product.
func (c *Catalog) Validate() error {
	products := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.Name == "" || p.Price < 0 || p.Stock < 0 {
			return fmt.Errorf("seed product %q: %w", p.Name, domain.ErrInvalidInput)
		}
		if products[p.Name] {
			return fmt.Errorf("seed product %q listed twice: %w", p.Name, domain.ErrInvalidInput)
		}
		products[p.Name] = true
	}

	users := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.Email != domain.NormalizeEmail(u.Email) || !domain.IsValidRole(u.Role) {
			return fmt.Errorf("seed user %q: %w", u.Email, domain.ErrInvalidInput)
		}
		users[u.Email] = true
	}
	if !users[c.AdminEmail] {
		return fmt.Errorf("seed admin %q not among users: %w", c.AdminEmail, domain.ErrInvalidInput)
	}

	for i, o := range c.Orders {
		if !users[o.User] {
			return fmt.Errorf("seed order %d: unknown user %q: %w", i, o.User, domain.ErrInvalidInput)
		}
		if o.User == c.AdminEmail {
			return fmt.Errorf("seed order %d: the admin is created last and cannot own orders: %w", i, domain.ErrInvalidInput)
		}
		if !domain.IsValidStatus(o.Status) {
			return fmt.Errorf("seed order %d: status %q: %w", i, o.Status, domain.ErrInvalidInput)
		}
		if len(o.Items) == 0 {
			return fmt.Errorf("seed order %d has no items: %w", i, domain.ErrInvalidInput)
		}
		for _, line := range o.Items {
			if !products[line.Product] || line.Quantity < 1 {
				return fmt.Errorf("seed order %d: line %q x%d: %w", i, line.Product, line.Quantity, domain.ErrInvalidInput)
			}
		}
		if missing := o.ShippingAddress.MissingFields(); len(missing) > 0 {
			return fmt.Errorf("seed order %d: address missing %v: %w", i, missing, domain.ErrInvalidInput)
		}
	}
	return nil
}
