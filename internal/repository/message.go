package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mobilepush/internal/model"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) GetUserMessage(ctx context.Context, userID, messageID int64) (*model.UserMessage, error) {
	query := `
		SELECT um.user_id, um.is_read,
			m.id AS "message.id",
			m.recipient_type AS "message.recipient_type",
			m.display_recipient AS "message.display_recipient",
			m.subject AS "message.subject",
			m.rendered_content AS "message.rendered_content",
			m.pub_date AS "message.pub_date",
			s.id AS "message.sender.id",
			s.email AS "message.sender.email",
			s.full_name AS "message.sender.full_name",
			s.avatar_url AS "message.sender.avatar_url",
			s.is_bot AS "message.sender.is_bot"
		FROM user_messages um
		JOIN messages m ON m.id = um.message_id
		JOIN users s ON s.id = m.sender_id
		WHERE um.user_id = $1 AND um.message_id = $2
	`
	var um model.UserMessage
	err := r.db.GetContext(ctx, &um, query, userID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user message: %w", err)
	}
	return &um, nil
}
