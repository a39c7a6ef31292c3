package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mobilepush/internal/metrics"
	"mobilepush/internal/model"
	"mobilepush/internal/repository"
)

// RetryQueue accepts an event for later redelivery. It owns the retry
// count and calls onExhausted once when it gives up.
type RetryQueue interface {
	Submit(ctx context.Context, stream string, event model.MissedMessageEvent, onExhausted func(model.MissedMessageEvent)) error
}

// Notifier hands both payloads for a user to the relay.
type Notifier interface {
	Notify(ctx context.Context, userID int64, apns model.APNsPayload, gcm model.GCMPayload) error
}

// DeviceLister lists a local user's devices for one gateway.
type DeviceLister interface {
	List(ctx context.Context, userID int64, kind model.PushKind) ([]model.DeviceToken, error)
}

// AppleSender delivers to Apple devices; see APNsChannel.
type AppleSender interface {
	Send(ctx context.Context, userID int64, devices []model.DeviceToken, payload model.APNsPayload) []APNsResult
}

// AndroidSender delivers to Android devices; see AndroidChannel.
type AndroidSender interface {
	Send(ctx context.Context, devices []model.DeviceToken, payload model.GCMPayload, remote bool)
}

// PushDispatcherDeps groups the collaborators of PushDispatcher.
// Bouncer is nil unless notifications go through the relay.
type PushDispatcherDeps struct {
	Users       repository.UserRepository
	Messages    repository.MessageRepository
	Preferences NotificationPreferences
	Builder     *PayloadBuilder
	Devices     DeviceLister
	Apple       AppleSender
	Android     AndroidSender
	Bouncer     Notifier
	Retry       RetryQueue
	RetryStream string
}

// PushDispatcher turns one missed-message event into mobile pushes.
// It holds no per-event state and is safe for concurrent use.
type PushDispatcher struct {
	deps PushDispatcherDeps
}

func NewPushDispatcher(deps PushDispatcherDeps) *PushDispatcher {
	if deps.Preferences == nil {
		deps.Preferences = ProfilePreferences{}
	}
	return &PushDispatcher{deps: deps}
}

// HandleMissedMessage processes one event to completion. Events that need
// nothing sent return nil. A relay connection failure hands the event to
// the retry queue; other relay failures are returned.
func (d *PushDispatcher) HandleMissedMessage(ctx context.Context, event model.MissedMessageEvent) error {
	outcome, err := d.handle(ctx, event)
	if err != nil {
		outcome = "error"
	}
	metrics.PushNotifications.WithLabelValues(outcome).Inc()
	return err
}

func (d *PushDispatcher) handle(ctx context.Context, event model.MissedMessageEvent) (string, error) {
	user, err := d.deps.Users.GetByID(ctx, event.UserProfileID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			log.Printf("[Push] User %d not found, dropping event for message %d", event.UserProfileID, event.MessageID)
			return "user_missing", nil
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	if !d.deps.Preferences.WantsOfflineNotifications(user) && !d.deps.Preferences.WantsOnlineNotifications(user) {
		return "not_wanted", nil
	}

	um, err := d.deps.Messages.GetUserMessage(ctx, user.ID, event.MessageID)
	if err != nil {
		if errors.Is(err, model.ErrUserMessageNotFound) {
			log.Printf("[Push] Could not find UserMessage with message_id %d and user_id %d", event.MessageID, user.ID)
			return "message_missing", nil
		}
		return "", fmt.Errorf("get user message: %w", err)
	}

	// A read receipt that won the race suppresses the push.
	if um.Read {
		return "already_read", nil
	}

	msg := &um.Message
	apnsPayload := d.deps.Builder.APNsPayload(msg, event.Trigger, event.StreamName)
	gcmPayload := d.deps.Builder.GCMPayload(user, msg, event.Trigger, event.StreamName)

	if d.deps.Bouncer != nil {
		return d.relay(ctx, user.ID, event, apnsPayload, gcmPayload)
	}

	apple, err := d.deps.Devices.List(ctx, user.ID, model.PushKindAPNS)
	if err != nil {
		return "", fmt.Errorf("list apns devices: %w", err)
	}
	android, err := d.deps.Devices.List(ctx, user.ID, model.PushKindGCM)
	if err != nil {
		return "", fmt.Errorf("list gcm devices: %w", err)
	}

	if len(apple) > 0 && d.deps.Apple != nil {
		d.deps.Apple.Send(ctx, user.ID, apple, apnsPayload)
	}
	if len(android) > 0 && d.deps.Android != nil {
		d.deps.Android.Send(ctx, android, gcmPayload, false)
	}
	if len(apple) == 0 && len(android) == 0 {
		return "no_devices", nil
	}
	return "delivered", nil
}

func (d *PushDispatcher) relay(ctx context.Context, userID int64, event model.MissedMessageEvent, apns model.APNsPayload, gcm model.GCMPayload) (string, error) {
	err := d.deps.Bouncer.Notify(ctx, userID, apns, gcm)
	if err == nil {
		return "relayed", nil
	}

	var connErr *BouncerConnectionError
	if !errors.As(err, &connErr) {
		return "", err
	}

	log.Printf("[Push] Bouncer unreachable for user %d: %v", userID, connErr)
	onExhausted := func(e model.MissedMessageEvent) {
		log.Printf("[Push] Maximum retries exceeded for trigger:%s event:push_notification user=%d message=%d",
			e.Trigger, e.UserProfileID, e.MessageID)
	}
	if err := d.deps.Retry.Submit(ctx, d.deps.RetryStream, event, onExhausted); err != nil {
		return "", fmt.Errorf("submit push retry: %w", err)
	}
	return "retry", nil
}
