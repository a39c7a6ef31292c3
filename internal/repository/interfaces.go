package repository

import (
	"context"

	"mobilepush/internal/model"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.UserProfile, error)
}

type MessageRepository interface {
	// GetUserMessage returns the recipient's view of a message, or
	// model.ErrUserMessageNotFound.
	GetUserMessage(ctx context.Context, userID, messageID int64) (*model.UserMessage, error)
}

// GCMTokenStore is the subset of a token table the Android channel needs to
// reconcile gateway responses. Both the local and the remote directory
// implement it.
type GCMTokenStore interface {
	// Exists checks if any record holds the token
	Exists(ctx context.Context, token string, kind model.PushKind) (bool, error)
	// UpdateToken rewrites the token value of existing records in place
	UpdateToken(ctx context.Context, oldToken, newToken string, kind model.PushKind) error
	// Delete removes the token; model.ErrTokenNotFound if nothing was deleted
	Delete(ctx context.Context, token string, kind model.PushKind) error
}

type DeviceTokenRepository interface {
	GCMTokenStore
	// Register drops any other user's ownership of the token and upserts the
	// record for userID. Returns true if a new record was created.
	Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error)
	// ListByUser returns a user's tokens for one gateway
	ListByUser(ctx context.Context, userID int64, kind model.PushKind) ([]model.DeviceToken, error)
	// CountByUser counts a user's tokens, optionally for one gateway only
	CountByUser(ctx context.Context, userID int64, kind *model.PushKind) (int, error)
}

type RemoteDeviceTokenRepository interface {
	GCMTokenStore
	Register(ctx context.Context, serverID, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error)
	// DeleteForServer removes a token registered by one server; model.ErrTokenNotFound if absent
	DeleteForServer(ctx context.Context, serverID int64, token string, kind model.PushKind) error
	ListByUser(ctx context.Context, serverID, userID int64, kind model.PushKind) ([]model.RemoteDeviceToken, error)
}

type RemoteServerRepository interface {
	// GetByUUID returns model.ErrRemoteServerNotFound for unknown servers
	GetByUUID(ctx context.Context, uuid string) (*model.RemoteServer, error)
	Create(ctx context.Context, server *model.RemoteServer) error
}
