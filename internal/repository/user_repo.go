package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type postgresUserRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresUserRepository(db *sql.DB, logger *logrus.Logger) domain.UserRepository {
	return &postgresUserRepository{
		db:  db,
		log: logger,
	}
}

func (r *postgresUserRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
        INSERT INTO users (id, email, name, role)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	r.log.Debugf("Repository: Attempting to create user with email: %s", user.Email)

	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		translated := translatePqError(err, fmt.Sprintf("user with email '%s'", user.Email))
		if errors.Is(translated, domain.ErrAlreadyExists) {
			r.log.Warnf("Repository: Attempted to create user with duplicate email: %s", user.Email)
			return nil, translated
		}
		r.log.Errorf("Repository: Failed to create user '%s': %v", user.Email, err)
		return nil, fmt.Errorf("could not create user: %w", translated)
	}

	r.log.Infof("Repository: User created successfully with ID: %s, Email: %s", user.ID, user.Email)
	return user, nil
}

func (r *postgresUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE id = $1`
	user := &domain.User{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: User with ID %s not found", id)
			return nil, fmt.Errorf("user %s %w", id, domain.ErrNotFound)
		}
		if translated := translatePqError(err, "user "+id); errors.Is(translated, domain.ErrNotFound) {
			return nil, translated
		}
		r.log.Errorf("Repository: Failed to get user by ID %s: %v", id, err)
		return nil, fmt.Errorf("could not get user by id: %w", err)
	}

	r.log.Debugf("Repository: User found by ID %s (Email: %s)", id, user.Email)
	return user, nil
}

func (r *postgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE email = $1`
	user := &domain.User{}

	r.log.Debugf("Repository: Attempting to find user by email: %s", email)

	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugf("Repository: User with email %s not found", email)
			return nil, fmt.Errorf("user with email %s %w", email, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get user by email %s: %v", email, err)
		return nil, fmt.Errorf("could not get user by email: %w", err)
	}

	return user, nil
}

func (r *postgresUserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, name, role, created_at FROM users ORDER BY created_at ASC, email ASC`)
	if err != nil {
		r.log.Errorf("Repository: Failed to list users: %v", err)
		return nil, fmt.Errorf("could not list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt); err != nil {
			r.log.Errorf("Repository: Failed to scan user row: %v", err)
			return nil, fmt.Errorf("error scanning user data: %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	r.log.Infof("Repository: Retrieved %d users", len(users))
	return users, nil
}

func (r *postgresUserRepository) CountUsers(ctx context.Context) (int, error) {
	return count(ctx, r.db, "users")
}
