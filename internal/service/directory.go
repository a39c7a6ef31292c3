package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mobilepush/internal/model"
	"mobilepush/internal/repository"
)

const maxTokenLength = 4096

// DeviceDirectory registers and removes push device tokens for local users.
// Tokens are given in the device's own encoding (hex for APNs).
//
// There are two implementations: LocalDirectory stores tokens in this
// server's database; BouncerDirectory forwards to the push relay.
type DeviceDirectory interface {
	Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error
	Unregister(ctx context.Context, userID int64, token string, kind model.PushKind) error
}

// TokenReconciler applies gateway feedback about stored tokens. Tokens are
// in their stored form.
type TokenReconciler interface {
	Has(ctx context.Context, token string, kind model.PushKind) (bool, error)
	ReassignCanonical(ctx context.Context, oldToken, newToken string, kind model.PushKind) error
	Remove(ctx context.Context, token string, kind model.PushKind) error
}

// DeviceRegistrar is the part of the relay client used for registrations.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error
	UnregisterDevice(ctx context.Context, userID int64, token string, kind model.PushKind) error
}

// NewDeviceDirectory selects the relay-backed directory when a relay is configured.
func NewDeviceDirectory(local *LocalDirectory, bouncer DeviceRegistrar) DeviceDirectory {
	if bouncer != nil {
		return &BouncerDirectory{bouncer: bouncer}
	}
	return local
}

// normalizeToken validates a token and converts it to its stored form.
// A malformed token is a rejected registration, reported as *ClientError.
func normalizeToken(token string, kind model.PushKind) (string, error) {
	if !kind.Valid() {
		return "", &ClientError{Msg: "Invalid token type"}
	}
	if token == "" || len(token) > maxTokenLength {
		return "", &ClientError{Msg: "Empty or invalid length token"}
	}
	if kind != model.PushKindAPNS {
		return token, nil
	}
	stored, err := EncodeForStorage(token)
	if err != nil {
		return "", &ClientError{Msg: "Invalid APNS token"}
	}
	return stored, nil
}

// LocalDirectory is the device directory backed by this server's database.
type LocalDirectory struct {
	tokens repository.DeviceTokenRepository
}

func NewLocalDirectory(tokens repository.DeviceTokenRepository) *LocalDirectory {
	return &LocalDirectory{tokens: tokens}
}

// Register stores a token for userID, taking it over from any other user
// that still has it registered.
func (d *LocalDirectory) Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error {
	stored, err := normalizeToken(token, kind)
	if err != nil {
		return err
	}
	if kind != model.PushKindAPNS {
		iosAppID = nil
	}

	log.Printf("[Directory] New push device: user=%d kind=%s", userID, kind)
	created, err := d.tokens.Register(ctx, userID, stored, kind, iosAppID)
	if err != nil {
		return err
	}
	if created {
		log.Printf("[Directory] New push device created: user=%d", userID)
	} else {
		log.Printf("[Directory] Existing push device updated: user=%d", userID)
	}
	return nil
}

// Unregister deletes the token. Returns an error wrapping
// model.ErrTokenNotFound if it is not registered.
func (d *LocalDirectory) Unregister(ctx context.Context, userID int64, token string, kind model.PushKind) error {
	stored, err := normalizeToken(token, kind)
	if err != nil {
		return err
	}
	if err := d.tokens.Delete(ctx, stored, kind); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			return fmt.Errorf("unregister device for user %d: %w", userID, err)
		}
		return err
	}
	return nil
}

// List returns a user's devices for one gateway.
func (d *LocalDirectory) List(ctx context.Context, userID int64, kind model.PushKind) ([]model.DeviceToken, error) {
	return d.tokens.ListByUser(ctx, userID, kind)
}

// Count returns how many devices a user has, for one gateway or all if kind is nil.
func (d *LocalDirectory) Count(ctx context.Context, userID int64, kind *model.PushKind) (int, error) {
	return d.tokens.CountByUser(ctx, userID, kind)
}

// Has reports whether any user has the stored token registered.
func (d *LocalDirectory) Has(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	return d.tokens.Exists(ctx, token, kind)
}

// ReassignCanonical moves a record to the token the gateway reports as canonical.
func (d *LocalDirectory) ReassignCanonical(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	return d.tokens.UpdateToken(ctx, oldToken, newToken, kind)
}

// Remove deletes a stored token the gateway reported as invalid.
func (d *LocalDirectory) Remove(ctx context.Context, token string, kind model.PushKind) error {
	return d.tokens.Delete(ctx, token, kind)
}

// BouncerDirectory forwards registrations to the push relay; nothing is
// stored locally.
type BouncerDirectory struct {
	bouncer DeviceRegistrar
}

func (d *BouncerDirectory) Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error {
	stored, err := normalizeToken(token, kind)
	if err != nil {
		return err
	}
	return d.bouncer.RegisterDevice(ctx, userID, stored, kind, iosAppID)
}

func (d *BouncerDirectory) Unregister(ctx context.Context, userID int64, token string, kind model.PushKind) error {
	stored, err := normalizeToken(token, kind)
	if err != nil {
		return err
	}
	return d.bouncer.UnregisterDevice(ctx, userID, stored, kind)
}
