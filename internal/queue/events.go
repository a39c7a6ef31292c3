package queue

import (
	"encoding/json"
	"fmt"

	"mobilepush/internal/model"
)

// Stream names
const (
	StreamMissedMessages = "stream:missedmessage_mobile_notifications"
)

// Consumer group name for push workers
const (
	ConsumerGroupPush = "push_workers"
)

// EncodeEvent converts the event to field-value pairs for XADD. The whole
// event is serialized to JSON in a "data" field; "trigger" is duplicated
// for XRANGE inspection.
func EncodeEvent(e model.MissedMessageEvent) (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"trigger": e.Trigger,
		"data":    string(data),
	}, nil
}

// ParseEvent parses a missed-message event from Redis stream message values.
func ParseEvent(values map[string]interface{}) (model.MissedMessageEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return model.MissedMessageEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event model.MissedMessageEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return model.MissedMessageEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.UserProfileID == 0 || event.MessageID == 0 {
		return model.MissedMessageEvent{}, fmt.Errorf("event missing user_profile_id or message_id")
	}
	return event, nil
}
