package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UserRepository reads Redmine users.
type UserRepository struct {
	DB *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// GetAll retrieves every user.
func (r *UserRepository) GetAll(ctx context.Context) ([]*User, error) {
	var users []*User
	if err := r.DB.SelectContext(ctx, &users, `SELECT id, login, firstname, lastname FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}
