package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mobilepush/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Register creates or refreshes a device token for a user.
// If another user was previously logged in on the same device and didn't log
// out, the token is still registered to them; that record is dropped first.
// On conflict only last_updated changes, unless a concurrent registration
// moved the token, in which case the latest writer takes ownership.
func (r *deviceTokenRepository) Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM push_device_tokens WHERE token = $1 AND kind = $2 AND user_id <> $3`,
		token, kind, userID)
	if err != nil {
		return false, fmt.Errorf("delete stale device token: %w", err)
	}

	query := `
		INSERT INTO push_device_tokens (user_id, kind, token, ios_app_id, last_updated)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token, kind) DO UPDATE SET
			ios_app_id = CASE WHEN push_device_tokens.user_id <> EXCLUDED.user_id
				THEN EXCLUDED.ios_app_id ELSE push_device_tokens.ios_app_id END,
			user_id = EXCLUDED.user_id,
			last_updated = NOW()
		RETURNING (xmax = 0) AS created
	`
	var created bool
	if err := tx.GetContext(ctx, &created, query, userID, kind, token, iosAppID); err != nil {
		return false, fmt.Errorf("upsert device token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit device token: %w", err)
	}
	return created, nil
}

// ListByUser returns all device tokens of one kind for a user.
func (r *deviceTokenRepository) ListByUser(ctx context.Context, userID int64, kind model.PushKind) ([]model.DeviceToken, error) {
	query := `
		SELECT id, user_id, kind, token, ios_app_id, last_updated
		FROM push_device_tokens
		WHERE user_id = $1 AND kind = $2
		ORDER BY id
	`
	var tokens []model.DeviceToken
	err := r.db.SelectContext(ctx, &tokens, query, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

func (r *deviceTokenRepository) CountByUser(ctx context.Context, userID int64, kind *model.PushKind) (int, error) {
	var count int
	var err error
	if kind == nil {
		err = r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM push_device_tokens WHERE user_id = $1`, userID)
	} else {
		err = r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM push_device_tokens WHERE user_id = $1 AND kind = $2`, userID, *kind)
	}
	if err != nil {
		return 0, fmt.Errorf("count device tokens: %w", err)
	}
	return count, nil
}

func (r *deviceTokenRepository) Exists(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM push_device_tokens WHERE token = $1 AND kind = $2)`, token, kind)
	if err != nil {
		return false, fmt.Errorf("check device token: %w", err)
	}
	return exists, nil
}

func (r *deviceTokenRepository) UpdateToken(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE push_device_tokens SET token = $1 WHERE token = $2 AND kind = $3`, newToken, oldToken, kind)
	if err != nil {
		return fmt.Errorf("update device token: %w", err)
	}
	return nil
}

// Delete removes a device token.
func (r *deviceTokenRepository) Delete(ctx context.Context, token string, kind model.PushKind) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM push_device_tokens WHERE token = $1 AND kind = $2`, token, kind)
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return checkDeleted(res)
}
