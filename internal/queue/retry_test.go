package queue

import (
	"context"
	"errors"
	"testing"

	"mobilepush/internal/model"
)

type mockPublisher struct {
	publishFn func(ctx context.Context, stream string, event model.MissedMessageEvent) (string, error)
	published []model.MissedMessageEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event model.MissedMessageEvent) (string, error) {
	m.published = append(m.published, event)
	if m.publishFn != nil {
		return m.publishFn(ctx, stream, event)
	}
	return "1-0", nil
}

func intPtr(n int) *int {
	return &n
}

// =============================================================================
// RETRY QUEUE
// =============================================================================

func TestRetryQueue_Submit_Requeues(t *testing.T) {
	tests := []struct {
		name      string
		prior     *int
		wantTries int
	}{
		{"first failure", nil, 1},
		{"second failure", intPtr(1), 2},
		{"last retry", intPtr(2), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			q := NewRetryQueue(pub, 3)
			exhausted := 0
			event := model.MissedMessageEvent{UserProfileID: 1, MessageID: 2, FailedTries: tt.prior}

			err := q.Submit(context.Background(), StreamMissedMessages, event, func(model.MissedMessageEvent) { exhausted++ })

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(pub.published) != 1 {
				t.Fatalf("published %d events, want 1", len(pub.published))
			}
			if got := pub.published[0].FailedTries; got == nil || *got != tt.wantTries {
				t.Errorf("failed_tries = %v, want %d", got, tt.wantTries)
			}
			if exhausted != 0 {
				t.Error("onExhausted should not be called")
			}
		})
	}
}

func TestRetryQueue_Submit_Exhausted(t *testing.T) {
	pub := &mockPublisher{}
	q := NewRetryQueue(pub, 3)
	var got []model.MissedMessageEvent

	err := q.Submit(context.Background(), StreamMissedMessages,
		model.MissedMessageEvent{UserProfileID: 1, MessageID: 2, FailedTries: intPtr(3)},
		func(e model.MissedMessageEvent) { got = append(got, e) })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Error("an exhausted event must not be requeued")
	}
	if len(got) != 1 || *got[0].FailedTries != 4 {
		t.Errorf("onExhausted calls = %+v", got)
	}
}

func TestRetryQueue_Submit_DoesNotMutateCallerEvent(t *testing.T) {
	pub := &mockPublisher{}
	q := NewRetryQueue(pub, 3)
	tries := intPtr(1)
	event := model.MissedMessageEvent{UserProfileID: 1, MessageID: 2, FailedTries: tries}

	_ = q.Submit(context.Background(), StreamMissedMessages, event, nil)

	if *tries != 1 {
		t.Errorf("caller's counter changed to %d", *tries)
	}
}

func TestRetryQueue_Submit_PublishError(t *testing.T) {
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, stream string, event model.MissedMessageEvent) (string, error) {
			return "", errors.New("redis down")
		},
	}
	q := NewRetryQueue(pub, 3)

	if err := q.Submit(context.Background(), StreamMissedMessages, model.MissedMessageEvent{UserProfileID: 1, MessageID: 2}, nil); err == nil {
		t.Error("expected an error")
	}
}

func TestNewRetryQueue_DefaultMax(t *testing.T) {
	q := NewRetryQueue(&mockPublisher{}, 0)
	if q.maxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", q.maxRetries, DefaultMaxRetries)
	}
}

// =============================================================================
// EVENT ENCODING
// =============================================================================

func TestEncodeParseEvent(t *testing.T) {
	event := model.MissedMessageEvent{
		UserProfileID: 10,
		MessageID:     20,
		Trigger:       model.TriggerStreamPushNotify,
		StreamName:    "Verona",
		FailedTries:   intPtr(2),
	}

	values, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	if values["trigger"] != model.TriggerStreamPushNotify {
		t.Errorf("trigger field = %v", values["trigger"])
	}

	got, err := ParseEvent(values)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if got.UserProfileID != 10 || got.MessageID != 20 || got.StreamName != "Verona" {
		t.Errorf("got %+v", got)
	}
	if got.FailedTries == nil || *got.FailedTries != 2 {
		t.Errorf("failed_tries = %v", got.FailedTries)
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing data", map[string]interface{}{"trigger": "mentioned"}},
		{"not json", map[string]interface{}{"data": "{"}},
		{"missing ids", map[string]interface{}{"data": `{"trigger":"mentioned"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent(tt.values); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
