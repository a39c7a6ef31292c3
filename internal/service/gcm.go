package service

import (
	"context"
	"log"

	"mobilepush/internal/metrics"
	"mobilepush/internal/model"
)

// GCM error categories that mean the token will never work again.
const (
	GCMErrNotRegistered       = "NotRegistered"
	GCMErrInvalidRegistration = "InvalidRegistration"
)

// GCMResult is the gateway's verdict on one batch, keyed by registration id.
type GCMResult struct {
	// Success maps a registration id to the gateway's message id.
	Success map[string]string
	// Canonical maps a superseded registration id to its replacement.
	Canonical map[string]string
	// Errors maps an error category to the registration ids that hit it.
	Errors map[string][]string
}

// AndroidGateway sends one data message to a batch of registration ids.
// Transport failures are retried inside Send; an error means the batch was
// not delivered at all.
type AndroidGateway interface {
	Send(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error)
}

// AndroidChannel delivers to Android devices and applies the gateway's
// feedback to the right device directory.
type AndroidChannel struct {
	gateway AndroidGateway
	local   TokenReconciler
	remote  TokenReconciler
}

// NewAndroidChannel accepts a nil gateway; Send is then a logged no-op.
// remote may be nil when this server does not act as a relay.
func NewAndroidChannel(gateway AndroidGateway, local, remote TokenReconciler) *AndroidChannel {
	return &AndroidChannel{gateway: gateway, local: local, remote: remote}
}

// Send delivers payload to devices in one batch. remote selects the relay's
// directory for token cleanup. Failures are logged, never returned.
func (c *AndroidChannel) Send(ctx context.Context, devices []model.DeviceToken, payload model.GCMPayload, remote bool) {
	if c.gateway == nil {
		log.Printf("[GCM] Skipping sending a GCM push notification since no Android gateway credential is configured")
		metrics.AndroidPushNotifications.WithLabelValues("skipped").Inc()
		return
	}
	if len(devices) == 0 {
		return
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}

	res, err := c.gateway.Send(ctx, tokens, payload)
	if err != nil {
		log.Printf("[GCM] Failed sending to %d devices: %v", len(tokens), err)
		metrics.AndroidPushNotifications.WithLabelValues("io_error").Inc()
		return
	}
	metrics.AndroidPushNotifications.WithLabelValues("sent").Inc()

	dir := c.local
	if remote {
		dir = c.remote
	}
	if dir == nil {
		log.Printf("[GCM] No token directory for remote=%t, skipping gateway feedback", remote)
		return
	}
	c.reconcile(ctx, dir, res)
}

func (c *AndroidChannel) reconcile(ctx context.Context, dir TokenReconciler, res *GCMResult) {
	for regID, msgID := range res.Success {
		log.Printf("[GCM] Sent %s as %s", regID, msgID)
	}

	for oldID, newID := range res.Canonical {
		c.applyCanonical(ctx, dir, oldID, newID)
	}

	for category, regIDs := range res.Errors {
		switch category {
		case GCMErrNotRegistered, GCMErrInvalidRegistration:
			for _, regID := range regIDs {
				log.Printf("[GCM] Removing %s", regID)
				if err := dir.Remove(ctx, regID, model.PushKindGCM); err != nil {
					log.Printf("[GCM] Failed removing %s: %v", regID, err)
					continue
				}
				metrics.AndroidTokenUpdates.WithLabelValues("removed").Inc()
			}
		default:
			for _, regID := range regIDs {
				log.Printf("[GCM] Did not find %s: failed %s", regID, category)
			}
		}
	}
}

// applyCanonical handles a registration id the gateway says was replaced.
func (c *AndroidChannel) applyCanonical(ctx context.Context, dir TokenReconciler, oldID, newID string) {
	if oldID == newID {
		log.Printf("[GCM] Got canonical ID %s for %s, which is the same", newID, oldID)
		return
	}

	exists, err := dir.Has(ctx, newID, model.PushKindGCM)
	if err != nil {
		log.Printf("[GCM] Failed checking canonical ID %s: %v", newID, err)
		return
	}

	if !exists {
		// The app should have registered the new id already; repair the
		// record so future sends use it.
		log.Printf("[GCM] Got canonical ID %s for %s, but the new ID is not registered, updating", newID, oldID)
		if err := dir.ReassignCanonical(ctx, oldID, newID, model.PushKindGCM); err != nil {
			log.Printf("[GCM] Failed updating %s to %s: %v", oldID, newID, err)
			return
		}
		metrics.AndroidTokenUpdates.WithLabelValues("canonical_repaired").Inc()
		return
	}

	log.Printf("[GCM] Got canonical ID %s, dropping %s", newID, oldID)
	if err := dir.Remove(ctx, oldID, model.PushKindGCM); err != nil {
		log.Printf("[GCM] Failed removing %s: %v", oldID, err)
		return
	}
	metrics.AndroidTokenUpdates.WithLabelValues("canonical_dropped").Inc()
}
