package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"

	"mobilepush/internal/config"
	"mobilepush/internal/metrics"
	"mobilepush/internal/model"
)

const (
	apnsExpiration = 24 * time.Hour

	// APNsResultSuccess is the per-device result of an accepted notification.
	APNsResultSuccess = "Success"
	// APNsResultRetriesExhausted is reported when every attempt hit a transport error.
	APNsResultRetriesExhausted = "HTTP error, retries exhausted"
)

// APNsPusher is the subset of *apns2.Client used for delivery.
type APNsPusher interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// CertificateLoader fetches the raw certificate file.
type CertificateLoader interface {
	Load(ctx context.Context, location string) ([]byte, error)
}

// APNsResult is the terminal outcome for one device.
type APNsResult struct {
	Token      string // stored form
	Result     string // APNsResultSuccess, the gateway reason, or APNsResultRetriesExhausted
	StatusCode int    // 0 when no response was received
}

func (r APNsResult) Sent() bool {
	return r.Result == APNsResultSuccess
}

type apnsClientRef struct {
	pusher APNsPusher
}

// APNsChannel delivers notifications to Apple devices through one
// process-wide gateway client that is created on first use.
type APNsChannel struct {
	topic      string
	maxRetries int
	newClient  func() (APNsPusher, error)
	client     atomic.Pointer[apnsClientRef]
}

// NewAPNsChannel returns nil if no certificate is configured. A nil
// channel skips every send.
func NewAPNsChannel(cfg *config.Config, certs CertificateLoader) *APNsChannel {
	if cfg.APNSCertFile == "" {
		return nil
	}
	return NewAPNsChannelWithFactory(cfg.APNSTopic, cfg.APNSMaxRetries, func() (APNsPusher, error) {
		return newAPNsClient(cfg, certs)
	})
}

func NewAPNsChannelWithFactory(topic string, maxRetries int, factory func() (APNsPusher, error)) *APNsChannel {
	return &APNsChannel{
		topic:      topic,
		maxRetries: maxRetries,
		newClient:  factory,
	}
}

func newAPNsClient(cfg *config.Config, certs CertificateLoader) (APNsPusher, error) {
	data, err := certs.Load(context.Background(), cfg.APNSCertFile)
	if err != nil {
		return nil, err
	}

	var cert tls.Certificate
	if strings.HasSuffix(strings.ToLower(cfg.APNSCertFile), ".p12") {
		cert, err = certificate.FromP12Bytes(data, "")
	} else {
		cert, err = certificate.FromPemBytes(data, "")
	}
	if err != nil {
		return nil, fmt.Errorf("parse apns certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.APNSSandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}
	log.Printf("[APNs] Client initialized (sandbox=%t)", cfg.APNSSandbox)
	return client, nil
}

// getClient returns the shared client, creating it on first use. Two
// callers racing on a cold start may both build a client; the first one
// published wins and the other is dropped.
func (c *APNsChannel) getClient() (APNsPusher, error) {
	if ref := c.client.Load(); ref != nil {
		return ref.pusher, nil
	}
	pusher, err := c.newClient()
	if err != nil {
		return nil, err
	}
	if c.client.CompareAndSwap(nil, &apnsClientRef{pusher: pusher}) {
		return pusher, nil
	}
	return c.client.Load().pusher, nil
}

// Send delivers payload to each device in turn. Failures are logged and
// reported per device; Send never fails as a whole.
func (c *APNsChannel) Send(ctx context.Context, userID int64, devices []model.DeviceToken, p model.APNsPayload) []APNsResult {
	if c == nil {
		log.Printf("[APNs] Skipping sending an APNs push notification since APNS_CERT_FILE was not set")
		return nil
	}
	log.Printf("[APNs] Sending notification for user %d to %d devices", userID, len(devices))
	results := make([]APNsResult, 0, len(devices))

	client, err := c.getClient()
	if err != nil {
		log.Printf("[APNs] Failed to initialize client: %v", err)
		for _, device := range devices {
			results = append(results, APNsResult{Token: device.Token, Result: "client unavailable"})
			metrics.ApplePushNotifications.WithLabelValues("client_unavailable").Inc()
		}
		return results
	}

	body := buildAPNsBody(p)
	expiration := time.Now().Add(apnsExpiration)
	for _, device := range devices {
		res := c.sendToDevice(ctx, client, userID, device, body, expiration)
		results = append(results, res)
		if res.Sent() {
			metrics.ApplePushNotifications.WithLabelValues("success").Inc()
		} else {
			metrics.ApplePushNotifications.WithLabelValues("failure").Inc()
		}
		// TODO: delete the token when StatusCode is 410 and Apple's
		// unregistration timestamp is newer than device.LastUpdated.
	}
	return results
}

func (c *APNsChannel) sendToDevice(ctx context.Context, client APNsPusher, userID int64, device model.DeviceToken, body *payload.Payload, expiration time.Time) APNsResult {
	res := APNsResult{Token: device.Token}

	hexToken, err := DecodeForTransport(device.Token)
	if err != nil {
		log.Printf("[APNs] Skipping device %s for user %d: %v", device.Token, userID, err)
		res.Result = "MalformedToken"
		return res
	}

	n := &apns2.Notification{
		ApnsID:      uuid.NewString(),
		DeviceToken: hexToken,
		Topic:       c.topic,
		Expiration:  expiration,
		Payload:     body,
	}

	// Each device gets the full retry budget.
	var resp *apns2.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && ctx.Err() != nil {
			break
		}
		resp, err = client.Push(n)
		if err == nil {
			break
		}
		log.Printf("[APNs] HTTP error sending for user %d to device %s: %v", userID, device.Token, err)
	}

	if err != nil {
		res.Result = APNsResultRetriesExhausted
		log.Printf("[APNs] Error sending for user %d to device %s: %s", userID, device.Token, res.Result)
		return res
	}

	res.StatusCode = resp.StatusCode
	if resp.Sent() {
		res.Result = APNsResultSuccess
		log.Printf("[APNs] Success sending for user %d to device %s", userID, device.Token)
		return res
	}

	res.Result = resp.Reason
	if res.Result == "" {
		res.Result = http.StatusText(resp.StatusCode)
	}
	log.Printf("[APNs] Error sending for user %d to device %s: %s", userID, device.Token, res.Result)
	return res
}

func buildAPNsBody(p model.APNsPayload) *payload.Payload {
	body := payload.NewPayload()
	if p.Alert.IsPlain() {
		body.Alert(p.Alert.Text)
	} else {
		body.AlertTitle(p.Alert.Title).AlertBody(p.Alert.Body)
	}
	return body.
		Badge(p.Badge).
		Custom("zulip", map[string]any{"message_ids": p.Custom.Zulip.MessageIDs})
}
