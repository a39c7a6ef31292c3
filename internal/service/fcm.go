package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"mobilepush/internal/model"
)

// MulticastSender is the subset of *messaging.Client used by FCMGateway.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMGateway is the Android gateway backed by the Firebase HTTP v1 API.
//
// Unlike the legacy API it authenticates with a service account instead of
// a server key, and it never reports canonical ids: a replaced token simply
// comes back as unregistered. Per-token errors are mapped onto the legacy
// error categories so AndroidChannel can treat both gateways alike.
//
// The credentials (project ID, client email, private key) come from the
// Firebase console: Project Settings -> Service Accounts -> Generate New Private Key.
type FCMGateway struct {
	client MulticastSender
}

// NewFCMGateway creates the gateway from service account credentials.
// The private key in .env has literal "\n" sequences, which are turned
// back into newlines before the PEM is parsed.
func NewFCMGateway(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMGateway, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	opt := option.WithCredentialsJSON([]byte(credsJSON))
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized for project: %s", projectID)
	return NewFCMGatewayWithClient(client), nil
}

func NewFCMGatewayWithClient(client MulticastSender) *FCMGateway {
	return &FCMGateway{client: client}
}

// Send delivers payload as a data-only message so the app builds the
// notification itself. Retries of transient failures happen inside the
// Firebase SDK.
func (g *FCMGateway) Send(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
	result := &GCMResult{
		Success:   map[string]string{},
		Canonical: map[string]string{},
		Errors:    map[string][]string{},
	}
	if len(tokens) == 0 {
		return result, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   payload.StringMap(),
		Android: &messaging.AndroidConfig{
			// Deliver even in battery-saving mode
			Priority: "high",
		},
	}

	response, err := g.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("send multicast: %w", err)
	}

	log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
		len(tokens), response.SuccessCount, response.FailureCount)

	for i, resp := range response.Responses {
		if i >= len(tokens) {
			break
		}
		if resp.Success {
			result.Success[tokens[i]] = resp.MessageID
			continue
		}
		category := fcmErrorCategory(resp.Error)
		result.Errors[category] = append(result.Errors[category], tokens[i])
	}
	return result, nil
}

func fcmErrorCategory(err error) string {
	switch {
	case messaging.IsUnregistered(err):
		return GCMErrNotRegistered
	case messaging.IsInvalidArgument(err):
		return GCMErrInvalidRegistration
	case messaging.IsSenderIDMismatch(err):
		return "MismatchSenderId"
	case messaging.IsUnavailable(err):
		return "Unavailable"
	case messaging.IsInternal(err):
		return "InternalServerError"
	case messaging.IsQuotaExceeded(err):
		return "QuotaExceeded"
	default:
		return "Unknown"
	}
}
