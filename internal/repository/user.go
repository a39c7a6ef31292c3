package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mobilepush/internal/model"
)

// userRepository reads user profiles owned by the account service.
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user profile with its notification settings
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.UserProfile, error) {
	query := `
		SELECT id, email, full_name, avatar_url, is_bot,
			enable_offline_email_notifications,
			enable_offline_push_notifications,
			enable_online_push_notifications
		FROM users
		WHERE id = $1
	`
	var user model.UserProfile
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &user, nil
}
