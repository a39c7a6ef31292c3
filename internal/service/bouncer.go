package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"mobilepush/internal/config"
	"mobilepush/internal/metrics"
	"mobilepush/internal/model"
)

const (
	bouncerAPIPrefix = "/api/v1/remotes/push/"
	bouncerTimeout   = 30 * time.Second

	// CodeInvalidZulipServer is the relay error code for bad server credentials.
	CodeInvalidZulipServer = "INVALID_ZULIP_SERVER"
)

// BouncerClient forwards registrations and notifications to the push
// notification bouncer, a relay that talks to the gateways on behalf of
// servers without gateway credentials of their own.
//
// Failures fall into three classes:
//   - transport errors are returned as *BouncerConnectionError;
//   - 5xx, rejected server credentials and unexpected statuses are *BouncerError;
//   - other 4xx are *ClientError carrying the relay's message.
type BouncerClient struct {
	baseURL    *url.URL
	orgID      string
	orgKey     string
	userAgent  string
	httpClient *http.Client
}

// bouncerErrorResponse is the relay's error body.
type bouncerErrorResponse struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Code   string `json:"code"`
}

// NewBouncerClient creates a client for cfg.PushNotificationBouncerURL.
// Only https URLs are accepted, and the relay certificate is always verified.
func NewBouncerClient(cfg *config.Config) (*BouncerClient, error) {
	base, err := url.Parse(cfg.PushNotificationBouncerURL)
	if err != nil {
		return nil, fmt.Errorf("parse bouncer url: %w", err)
	}
	if base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("bouncer url must be an https URL, got %q", cfg.PushNotificationBouncerURL)
	}

	return &BouncerClient{
		baseURL:   base,
		orgID:     cfg.ZulipOrgID,
		orgKey:    cfg.ZulipOrgKey,
		userAgent: "ZulipServer/" + cfg.ZulipVersion,
		httpClient: &http.Client{
			Timeout: bouncerTimeout,
		},
	}, nil
}

// Send issues one request to the relay and classifies the response.
// Once issued, the request runs to completion or to the client timeout;
// cancellation of ctx is not propagated.
func (c *BouncerClient) Send(ctx context.Context, method, endpoint string, body []byte, extraHeaders map[string]string) error {
	target := c.baseURL.ResolveReference(&url.URL{Path: bouncerAPIPrefix + endpoint})

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.orgID, c.orgKey)
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BouncerRequests.WithLabelValues(endpoint, "connection_error").Inc()
		return &BouncerConnectionError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BouncerRequests.WithLabelValues(endpoint, "connection_error").Inc()
		return &BouncerConnectionError{Err: fmt.Errorf("read response: %w", err)}
	}

	err = classifyBouncerResponse(resp.StatusCode, respBody)
	metrics.BouncerRequests.WithLabelValues(endpoint, bouncerResultLabel(err)).Inc()
	return err
}

func classifyBouncerResponse(status int, body []byte) error {
	switch {
	case status >= 500:
		// The people running the bouncer get alerted about these too.
		return &BouncerError{Msg: fmt.Sprintf("Received %d from push notification bouncer", status)}
	case status >= 400:
		var result bouncerErrorResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return &BouncerError{Msg: fmt.Sprintf(
				"Push notification bouncer returned unparseable error (status %d): %v", status, err)}
		}
		if result.Code == CodeInvalidZulipServer {
			return &BouncerError{Msg: "Push notifications bouncer error: " + result.Msg}
		}
		// e.g. a never-registered token; the caller's problem.
		return &ClientError{Msg: result.Msg}
	case status != http.StatusOK:
		// Likely a bug in this version's understanding of the relay protocol.
		return &BouncerError{Msg: fmt.Sprintf(
			"Push notification bouncer returned unexpected status code %d", status)}
	}
	return nil
}

func bouncerResultLabel(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *ClientError:
		return "client_error"
	default:
		return "service_error"
	}
}

// SendJSON encodes v and sends it with a JSON content type.
func (c *BouncerClient) SendJSON(ctx context.Context, method, endpoint string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal bouncer request: %w", err)
	}
	return c.Send(ctx, method, endpoint, body, map[string]string{"Content-Type": "application/json"})
}

// RegisterDevice registers a device token with the relay.
func (c *BouncerClient) RegisterDevice(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error {
	req := model.RemoteRegisterRequest{
		ServerUUID: c.orgID,
		UserID:     userID,
		Token:      token,
		TokenKind:  kind,
	}
	if kind == model.PushKindAPNS {
		req.IOSAppID = iosAppID
	}
	log.Printf("[Bouncer] Sending new push device: user=%d kind=%s", userID, kind)
	return c.SendJSON(ctx, http.MethodPost, "register", req)
}

// UnregisterDevice removes a device token from the relay.
func (c *BouncerClient) UnregisterDevice(ctx context.Context, userID int64, token string, kind model.PushKind) error {
	req := model.RemoteRegisterRequest{
		ServerUUID: c.orgID,
		UserID:     userID,
		Token:      token,
		TokenKind:  kind,
	}
	return c.SendJSON(ctx, http.MethodPost, "unregister", req)
}

// Notify hands both payloads for one user to the relay in a single call.
func (c *BouncerClient) Notify(ctx context.Context, userID int64, apns model.APNsPayload, gcm model.GCMPayload) error {
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return fmt.Errorf("marshal apns payload: %w", err)
	}
	req := model.RemoteNotifyRequest{
		UserID:      userID,
		APNsPayload: apnsJSON,
		GCMPayload:  gcm,
	}
	return c.SendJSON(ctx, http.MethodPost, "notify", req)
}
