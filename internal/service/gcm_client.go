package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"mobilepush/internal/model"
)

const (
	gcmSendURL     = "https://fcm.googleapis.com/fcm/send"
	gcmMaxAttempts = 10
)

// GCMClient talks to the legacy Android HTTP API, which authenticates with a
// server API key and reports canonical registration ids.
type GCMClient struct {
	apiKey       string
	endpoint     string
	httpClient   *http.Client
	retryBackoff time.Duration
}

// gcmRequest is the legacy send body.
type gcmRequest struct {
	RegistrationIDs []string         `json:"registration_ids"`
	Data            model.GCMPayload `json:"data"`
}

// gcmResponse is the legacy send response. Results are aligned with the
// request's registration_ids.
type gcmResponse struct {
	MulticastID  int64       `json:"multicast_id"`
	Success      int         `json:"success"`
	Failure      int         `json:"failure"`
	CanonicalIDs int         `json:"canonical_ids"`
	Results      []gcmResult `json:"results"`
}

type gcmResult struct {
	MessageID      string `json:"message_id,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

func NewGCMClient(apiKey string) *GCMClient {
	return &GCMClient{
		apiKey:   apiKey,
		endpoint: gcmSendURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryBackoff: time.Second,
	}
}

// Send posts payload to tokens. Tokens reported Unavailable or
// InternalServerError, 5xx responses and transport errors are retried with
// exponential backoff, up to gcmMaxAttempts requests in total.
func (c *GCMClient) Send(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
	result := &GCMResult{
		Success:   map[string]string{},
		Canonical: map[string]string{},
		Errors:    map[string][]string{},
	}

	pending := tokens
	backoff := c.retryBackoff
	var lastErr error
	answered := false
	for attempt := 1; attempt <= gcmMaxAttempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, retryable, err := c.post(ctx, pending, payload)
		if err != nil {
			if !retryable {
				return nil, err
			}
			lastErr = err
			log.Printf("[GCM] Attempt %d/%d failed: %v", attempt, gcmMaxAttempts, err)
			continue
		}
		lastErr = nil
		answered = true
		pending = collectGCMResults(pending, resp, result)
	}

	if lastErr != nil && !answered {
		return nil, fmt.Errorf("%w: gcm send failed after %d attempts: %v", model.ErrGatewayUnavailable, gcmMaxAttempts, lastErr)
	}
	// Tokens still pending after the last attempt are reported unavailable.
	for _, token := range pending {
		result.Errors["Unavailable"] = append(result.Errors["Unavailable"], token)
	}
	return result, nil
}

// collectGCMResults files each token's outcome into result and returns the
// tokens worth retrying.
func collectGCMResults(tokens []string, resp *gcmResponse, result *GCMResult) []string {
	var retry []string
	for i, token := range tokens {
		if i >= len(resp.Results) {
			retry = append(retry, token)
			continue
		}
		r := resp.Results[i]
		switch {
		case r.Error == "Unavailable" || r.Error == "InternalServerError":
			retry = append(retry, token)
		case r.Error != "":
			result.Errors[r.Error] = append(result.Errors[r.Error], token)
		case r.RegistrationID != "":
			result.Canonical[token] = r.RegistrationID
		default:
			result.Success[token] = r.MessageID
		}
	}
	return retry
}

// post sends one request. The bool reports whether a failure is worth
// retrying: transport errors and 5xx are, anything else is not.
func (c *GCMClient) post(ctx context.Context, tokens []string, payload model.GCMPayload) (*gcmResponse, bool, error) {
	body, err := json.Marshal(gcmRequest{RegistrationIDs: tokens, Data: payload})
	if err != nil {
		return nil, false, fmt.Errorf("marshal gcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("gcm returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("gcm returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result gcmResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &result, false, nil
}
