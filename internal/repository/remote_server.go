package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mobilepush/internal/model"
)

type remoteServerRepository struct {
	db *sqlx.DB
}

func NewRemoteServerRepository(db *sqlx.DB) RemoteServerRepository {
	return &remoteServerRepository{db: db}
}

func (r *remoteServerRepository) GetByUUID(ctx context.Context, uuid string) (*model.RemoteServer, error) {
	query := `
		SELECT id, uuid, api_key_hash, hostname, contact_email, last_updated
		FROM remote_zulip_servers
		WHERE uuid = $1
	`
	var server model.RemoteServer
	err := r.db.GetContext(ctx, &server, query, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRemoteServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get remote server: %w", err)
	}
	return &server, nil
}

// Create inserts a server; APIKeyHash must already be hashed.
func (r *remoteServerRepository) Create(ctx context.Context, server *model.RemoteServer) error {
	query := `
		INSERT INTO remote_zulip_servers (uuid, api_key_hash, hostname, contact_email, last_updated)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, last_updated
	`
	row := r.db.QueryRowxContext(ctx, query, server.UUID, server.APIKeyHash, server.Hostname, server.ContactEmail)
	if err := row.Scan(&server.ID, &server.LastUpdated); err != nil {
		return fmt.Errorf("insert remote server: %w", err)
	}
	return nil
}
