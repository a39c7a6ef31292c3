package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mobilepush/internal/model"
)

type remoteDeviceTokenRepository struct {
	db *sqlx.DB
}

func NewRemoteDeviceTokenRepository(db *sqlx.DB) RemoteDeviceTokenRepository {
	return &remoteDeviceTokenRepository{db: db}
}

func (r *remoteDeviceTokenRepository) Register(ctx context.Context, serverID, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error) {
	query := `
		INSERT INTO remote_push_device_tokens (server_id, user_id, kind, token, ios_app_id, last_updated)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (server_id, user_id, kind, token) DO UPDATE SET last_updated = NOW()
		RETURNING (xmax = 0) AS created
	`
	var created bool
	if err := r.db.GetContext(ctx, &created, query, serverID, userID, kind, token, iosAppID); err != nil {
		return false, fmt.Errorf("upsert remote device token: %w", err)
	}
	return created, nil
}

func (r *remoteDeviceTokenRepository) DeleteForServer(ctx context.Context, serverID int64, token string, kind model.PushKind) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM remote_push_device_tokens WHERE server_id = $1 AND token = $2 AND kind = $3`,
		serverID, token, kind)
	if err != nil {
		return fmt.Errorf("delete remote device token: %w", err)
	}
	return checkDeleted(res)
}

func (r *remoteDeviceTokenRepository) ListByUser(ctx context.Context, serverID, userID int64, kind model.PushKind) ([]model.RemoteDeviceToken, error) {
	query := `
		SELECT id, server_id, user_id, kind, token, ios_app_id, last_updated
		FROM remote_push_device_tokens
		WHERE server_id = $1 AND user_id = $2 AND kind = $3
		ORDER BY id
	`
	var tokens []model.RemoteDeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, serverID, userID, kind); err != nil {
		return nil, fmt.Errorf("get remote device tokens: %w", err)
	}
	return tokens, nil
}

// Gateway feedback is matched on the token alone, whichever server registered it.

func (r *remoteDeviceTokenRepository) Exists(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM remote_push_device_tokens WHERE token = $1 AND kind = $2)`, token, kind)
	if err != nil {
		return false, fmt.Errorf("check remote device token: %w", err)
	}
	return exists, nil
}

func (r *remoteDeviceTokenRepository) UpdateToken(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE remote_push_device_tokens SET token = $1 WHERE token = $2 AND kind = $3`, newToken, oldToken, kind)
	if err != nil {
		return fmt.Errorf("update remote device token: %w", err)
	}
	return nil
}

func (r *remoteDeviceTokenRepository) Delete(ctx context.Context, token string, kind model.PushKind) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM remote_push_device_tokens WHERE token = $1 AND kind = $2`, token, kind)
	if err != nil {
		return fmt.Errorf("delete remote device token: %w", err)
	}
	return checkDeleted(res)
}

func checkDeleted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}
