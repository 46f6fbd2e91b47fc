package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/seed"
)

var _ domain.SeedUseCase = (*seedUseCase)(nil)

type seedUseCase struct {
	catalog     *seed.Catalog
	productRepo domain.ProductRepository
	userRepo    domain.UserRepository
	orderRepo   domain.OrderRepository
	log         *logrus.Logger
}

func NewSeedUseCase(
	catalog *seed.Catalog,
	productRepo domain.ProductRepository,
	userRepo domain.UserRepository,
	orderRepo domain.OrderRepository,
	logger *logrus.Logger,
) domain.SeedUseCase {
	return &seedUseCase{
		catalog:     catalog,
		productRepo: productRepo,
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		log:         logger,
	}
}

func (uc *seedUseCase) counts(ctx context.Context) (*domain.SeedResult, error) {
	products, err := uc.productRepo.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	users, err := uc.userRepo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := uc.orderRepo.CountOrders(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.SeedResult{Products: products, Users: users, Orders: orders}, nil
}

// alreadySeeded reports whether the admin user exists. The admin is the
// last record seeding writes, so a run that failed partway is resumed.
func (uc *seedUseCase) alreadySeeded(ctx context.Context) (bool, error) {
	_, err := uc.userRepo.GetUserByEmail(ctx, uc.catalog.AdminEmail)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (uc *seedUseCase) Initialize(ctx context.Context) (*domain.SeedResult, error) {
	seeded, err := uc.alreadySeeded(ctx)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to check seed marker: %v", err)
		return nil, err
	}
	if seeded {
		uc.log.Info("Use Case: Seed data already present, skipping initialization")
		result, err := uc.counts(ctx)
		if err != nil {
			return nil, err
		}
		result.AlreadyInitialized = true
		return result, nil
	}

	products := make(map[string]*domain.Product, len(uc.catalog.Products))
	for _, p := range uc.catalog.Products {
		p := p
		created, err := uc.productRepo.CreateProduct(ctx, &p)
		if errors.Is(err, domain.ErrAlreadyExists) {
			created, err = uc.productRepo.GetProductByName(ctx, p.Name)
		}
		if err != nil {
			uc.log.Errorf("Use Case: Failed to seed product '%s': %v", p.Name, err)
			return nil, fmt.Errorf("seed product '%s': %w", p.Name, err)
		}
		products[created.Name] = created
	}

	var admin *domain.User
	users := make(map[string]*domain.User, len(uc.catalog.Users))
	for _, u := range uc.catalog.Users {
		u := u
		if u.Email == uc.catalog.AdminEmail {
			admin = &u
			continue
		}
		created, err := uc.seedUser(ctx, &u)
		if err != nil {
			return nil, err
		}
		users[created.Email] = created
	}

	orders := 0
	for _, o := range uc.catalog.Orders {
		user := users[o.User]
		existing, err := uc.orderRepo.ListOrders(ctx, domain.OrderFilter{UserID: user.ID})
		if err != nil {
			uc.log.Errorf("Use Case: Failed to check existing orders for %s: %v", o.User, err)
			return nil, fmt.Errorf("seed order for %s: %w", o.User, err)
		}
		if len(existing) > 0 {
			uc.log.Infof("Use Case: Sample order for %s already present", o.User)
			orders++
			continue
		}

		items := make([]domain.OrderItem, 0, len(o.Items))
		for _, line := range o.Items {
			p := products[line.Product]
			items = append(items, domain.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  line.Quantity,
			})
		}
		sample := &domain.Order{
			UserID:          user.ID,
			Items:           items,
			Total:           domain.OrderTotal(items),
			Status:          o.Status,
			ShippingAddress: o.ShippingAddress,
		}
		if _, err := uc.orderRepo.InsertOrder(ctx, sample); err != nil {
			uc.log.Errorf("Use Case: Failed to seed order for %s: %v", o.User, err)
			return nil, fmt.Errorf("seed order for %s: %w", o.User, err)
		}
		orders++
	}

	created, err := uc.seedUser(ctx, admin)
	if err != nil {
		return nil, err
	}
	users[created.Email] = created

	uc.log.Infof("Use Case: Seeded %d products, %d users, %d orders", len(products), len(users), orders)
	return &domain.SeedResult{Products: len(products), Users: len(users), Orders: orders}, nil
}

func (uc *seedUseCase) seedUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	created, err := uc.userRepo.CreateUser(ctx, u)
	if errors.Is(err, domain.ErrAlreadyExists) {
		created, err = uc.userRepo.GetUserByEmail(ctx, u.Email)
	}
	if err != nil {
		uc.log.Errorf("Use Case: Failed to seed user '%s': %v", u.Email, err)
		return nil, fmt.Errorf("seed user '%s': %w", u.Email, err)
	}
	return created, nil
}
