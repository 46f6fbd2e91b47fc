package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

var _ domain.UserUseCase = (*userUseCase)(nil)

type userUseCase struct {
	userRepo domain.UserRepository
	log      *logrus.Logger
}

func NewUserUseCase(repo domain.UserRepository, logger *logrus.Logger) domain.UserUseCase {
	return &userUseCase{
		userRepo: repo,
		log:      logger,
	}
}

func (uc *userUseCase) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := uc.userRepo.ListUsers(ctx)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to list users: %v", err)
		return nil, err
	}
	return users, nil
}

func (uc *userUseCase) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("user ID is required: %w", domain.ErrInvalidInput)
	}
	user, err := uc.userRepo.GetUserByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to get user ID %s: %v", id, err)
		return nil, err
	}
	return user, nil
}

func (uc *userUseCase) FindOrCreate(ctx context.Context, req domain.CreateUserRequest) (*domain.User, bool, error) {
	email := domain.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	role := req.Role
	if role == "" {
		role = domain.RoleCustomer
	}

	if email == "" || name == "" {
		uc.log.Warn("Use Case: User resolution failed - email and name are required")
		return nil, false, fmt.Errorf("email and name are required: %w", domain.ErrInvalidInput)
	}
	if !domain.IsValidRole(role) {
		uc.log.Warnf("Use Case: User resolution failed - invalid role %q", role)
		return nil, false, fmt.Errorf("invalid role '%s': %w", role, domain.ErrInvalidInput)
	}

	uc.log.Infof("Use Case: Resolving user by email: %s", email)
	existing, err := uc.userRepo.GetUserByEmail(ctx, email)
	if err == nil {
		uc.log.Infof("Use Case: Reusing existing user %s for %s", existing.ID, email)
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		uc.log.Errorf("Use Case: Failed to look up user %s: %v", email, err)
		return nil, false, err
	}

	created, err := uc.userRepo.CreateUser(ctx, &domain.User{Email: email, Name: name, Role: role})
	if err == nil {
		uc.log.Infof("Use Case: User created with ID %s for %s", created.ID, email)
		return created, true, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		uc.log.Errorf("Use Case: Repository failed to create user %s: %v", email, err)
		return nil, false, err
	}

	// Another request registered the same email between lookup and insert.
	uc.log.Warnf("Use Case: Concurrent registration for %s, looking up again", email)
	existing, err = uc.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		uc.log.Errorf("Use Case: Re-lookup after duplicate email %s failed: %v", email, err)
		return nil, false, err
	}
	return existing, false, nil
}
