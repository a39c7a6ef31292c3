package model

import (
	"encoding/json"
	"time"
)

// RemoteServer is a server registered with this relay. It authenticates with
// its UUID and API key; only a bcrypt hash of the key is stored.
type RemoteServer struct {
	ID           int64     `db:"id" json:"id"`
	UUID         string    `db:"uuid" json:"uuid"`
	APIKeyHash   string    `db:"api_key_hash" json:"-"`
	Hostname     string    `db:"hostname" json:"hostname"`
	ContactEmail string    `db:"contact_email" json:"contact_email"`
	LastUpdated  time.Time `db:"last_updated" json:"last_updated"`
}

// RemoteRegisterRequest is the relay wire body for register/unregister.
type RemoteRegisterRequest struct {
	ServerUUID string   `json:"server_uuid"`
	UserID     int64    `json:"user_id"`
	Token      string   `json:"token"`
	TokenKind  PushKind `json:"token_kind"`
	IOSAppID   *string  `json:"ios_app_id,omitempty"`
}

// RemoteNotifyRequest is the relay wire body for notify. The Apple payload
// is kept raw because older servers send a legacy shape.
type RemoteNotifyRequest struct {
	UserID      int64           `json:"user_id"`
	APNsPayload json.RawMessage `json:"apns_payload"`
	GCMPayload  GCMPayload      `json:"gcm_payload"`
}
