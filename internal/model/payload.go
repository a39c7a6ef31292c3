package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// APNsAlert is either a plain string alert (legacy) or a title/body pair.
type APNsAlert struct {
	Title string
	Body  string
	Text  string
}

// IsPlain reports whether the alert is sent as a bare string.
func (a APNsAlert) IsPlain() bool {
	return a.Title == "" && a.Body == ""
}

func (a APNsAlert) MarshalJSON() ([]byte, error) {
	if a.IsPlain() {
		return json.Marshal(a.Text)
	}
	return json.Marshal(struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}{a.Title, a.Body})
}

func (a *APNsAlert) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*a = APNsAlert{}
		return json.Unmarshal(data, &a.Text)
	}
	var obj struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode apns alert: %w", err)
	}
	*a = APNsAlert{Title: obj.Title, Body: obj.Body}
	return nil
}

// APNsPayload is the current Apple payload shape:
//
//	{"alert": ..., "badge": 0, "custom": {"zulip": {"message_ids": [...]}}}
type APNsPayload struct {
	Alert  APNsAlert  `json:"alert"`
	Badge  int        `json:"badge"`
	Custom APNsCustom `json:"custom"`
}

type APNsCustom struct {
	Zulip APNsZulipData `json:"zulip"`
}

type APNsZulipData struct {
	MessageIDs []int64 `json:"message_ids"`
}

// ModernizeAPNsPayload upgrades a payload in an unknown server version's
// format to the current format. The legacy format carried "message_ids" at
// the top level and a plain string alert. Current-format input is returned
// unchanged, so applying it twice is the same as applying it once.
func ModernizeAPNsPayload(data map[string]any) map[string]any {
	ids, ok := data["message_ids"]
	if !ok {
		return data
	}
	return map[string]any{
		"alert": data["alert"],
		"badge": 0,
		"custom": map[string]any{
			"zulip": map[string]any{
				"message_ids": ids,
			},
		},
	}
}

// ParseAPNsPayload decodes a payload received over the relay, normalizing
// the legacy shape first.
func ParseAPNsPayload(raw []byte) (*APNsPayload, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode apns payload: %w", err)
	}
	modern, err := json.Marshal(ModernizeAPNsPayload(data))
	if err != nil {
		return nil, fmt.Errorf("encode apns payload: %w", err)
	}
	var payload APNsPayload
	if err := json.Unmarshal(modern, &payload); err != nil {
		return nil, fmt.Errorf("decode apns payload: %w", err)
	}
	return &payload, nil
}

// GCMPayload is the flat data mapping delivered to Android devices.
// Stream and Topic are only set for stream messages.
type GCMPayload struct {
	User             string `json:"user"`
	Event            string `json:"event"`
	Alert            string `json:"alert"`
	ZulipMessageID   int64  `json:"zulip_message_id"` // message_id is reserved for CCS
	Time             int64  `json:"time"`
	Content          string `json:"content"`
	ContentTruncated bool   `json:"content_truncated"`
	SenderEmail      string `json:"sender_email"`
	SenderFullName   string `json:"sender_full_name"`
	SenderAvatarURL  string `json:"sender_avatar_url"`
	RecipientType    string `json:"recipient_type,omitempty"`
	Stream           string `json:"stream,omitempty"`
	Topic            string `json:"topic,omitempty"`
}

// StringMap flattens the payload for gateways that only accept string values.
func (p GCMPayload) StringMap() map[string]string {
	m := map[string]string{
		"user":              p.User,
		"event":             p.Event,
		"alert":             p.Alert,
		"zulip_message_id":  strconv.FormatInt(p.ZulipMessageID, 10),
		"time":              strconv.FormatInt(p.Time, 10),
		"content":           p.Content,
		"content_truncated": strconv.FormatBool(p.ContentTruncated),
		"sender_email":      p.SenderEmail,
		"sender_full_name":  p.SenderFullName,
		"sender_avatar_url": p.SenderAvatarURL,
	}
	if p.RecipientType != "" {
		m["recipient_type"] = p.RecipientType
	}
	if p.Stream != "" {
		m["stream"] = p.Stream
		m["topic"] = p.Topic
	}
	return m
}
