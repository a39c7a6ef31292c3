package model

import (
	"time"
)

// PushKind identifies the gateway a device token belongs to.
// The numeric values are part of the relay wire protocol ("token_kind").
type PushKind int

const (
	PushKindAPNS PushKind = 1
	PushKindGCM  PushKind = 2
)

// String returns the short platform name used in logs and metrics.
func (k PushKind) String() string {
	switch k {
	case PushKindAPNS:
		return "apns"
	case PushKindGCM:
		return "gcm"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the supported gateways.
func (k PushKind) Valid() bool {
	return k == PushKindAPNS || k == PushKindGCM
}

// DeviceToken represents a user's registered device for push notifications.
// A (token, kind) pair belongs to exactly one user at a time.
//
// APNs tokens are stored base64-encoded; see service.DecodeForTransport.
type DeviceToken struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Kind        PushKind  `db:"kind" json:"kind"`
	Token       string    `db:"token" json:"token"`
	IOSAppID    *string   `db:"ios_app_id" json:"ios_app_id,omitempty"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// RemoteDeviceToken is a device token registered through the relay by
// another server. Same shape as DeviceToken, additionally keyed by server.
type RemoteDeviceToken struct {
	ServerID int64 `db:"server_id" json:"server_id"`
	DeviceToken
}

// RegisterTokenRequest is the request body for registering an APNs token
// (hex, as handed out by iOS) or an Android registration id.
type RegisterTokenRequest struct {
	Token string  `json:"token"`
	AppID *string `json:"appid,omitempty"`
}
