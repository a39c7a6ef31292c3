package service

import (
	"context"
	"errors"
	"testing"

	"mobilepush/internal/model"
)

type mockAndroidGateway struct {
	sendFn func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error)

	calls [][]string
}

func (m *mockAndroidGateway) Send(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
	m.calls = append(m.calls, tokens)
	if m.sendFn != nil {
		return m.sendFn(ctx, tokens, payload)
	}
	return newGCMResult(), nil
}

func newGCMResult() *GCMResult {
	return &GCMResult{
		Success:   map[string]string{},
		Canonical: map[string]string{},
		Errors:    map[string][]string{},
	}
}

func gcmDevices(tokens ...string) []model.DeviceToken {
	out := make([]model.DeviceToken, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, model.DeviceToken{ID: int64(i + 1), UserID: 1, Kind: model.PushKindGCM, Token: tok})
	}
	return out
}

// =============================================================================
// ANDROID CHANNEL
// =============================================================================

func TestAndroidChannel_Send_NilGatewayIsNoop(t *testing.T) {
	store := newFakeTokenStore()
	store.add(1, "r1", model.PushKindGCM)
	ch := NewAndroidChannel(nil, NewLocalDirectory(store), nil)

	ch.Send(context.Background(), gcmDevices("r1"), model.GCMPayload{}, false)

	if store.mutations() != 0 {
		t.Error("no gateway means no directory changes")
	}
}

func TestAndroidChannel_Send_GatewayFailureLeavesDirectoryAlone(t *testing.T) {
	store := newFakeTokenStore()
	store.add(1, "r1", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			return nil, model.ErrGatewayUnavailable
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(store), nil)

	ch.Send(context.Background(), gcmDevices("r1"), model.GCMPayload{}, false)

	if len(gw.calls) != 1 {
		t.Fatalf("gateway called %d times, want 1", len(gw.calls))
	}
	if store.mutations() != 0 {
		t.Error("an IO error must not change the directory")
	}
}

func TestAndroidChannel_Send_BatchesAllTokens(t *testing.T) {
	gw := &mockAndroidGateway{}
	ch := NewAndroidChannel(gw, NewLocalDirectory(newFakeTokenStore()), nil)

	ch.Send(context.Background(), gcmDevices("r1", "r2", "r3"), model.GCMPayload{}, false)

	if len(gw.calls) != 1 || len(gw.calls[0]) != 3 {
		t.Errorf("calls = %v, want one batch of 3", gw.calls)
	}
}

func TestAndroidChannel_Send_CanonicalRepair(t *testing.T) {
	// ARRANGE: r1 was superseded by r1b, which nobody registered
	store := newFakeTokenStore()
	store.add(1, "r1", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Canonical["r1"] = "r1b"
			return res, nil
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(store), nil)

	// ACT
	ch.Send(context.Background(), gcmDevices("r1"), model.GCMPayload{}, false)

	// ASSERT
	if _, ok := store.records[tokenKey{"r1b", model.PushKindGCM}]; !ok {
		t.Error("record should have been moved to the canonical id")
	}
	if _, ok := store.records[tokenKey{"r1", model.PushKindGCM}]; ok {
		t.Error("old id should be gone")
	}
	if store.records[tokenKey{"r1b", model.PushKindGCM}].UserID != 1 {
		t.Error("record should keep its owner")
	}
}

func TestAndroidChannel_Send_CanonicalAlreadyRegistered(t *testing.T) {
	store := newFakeTokenStore()
	store.add(1, "r1", model.PushKindGCM)
	store.add(1, "r1b", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Canonical["r1"] = "r1b"
			return res, nil
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(store), nil)

	ch.Send(context.Background(), gcmDevices("r1", "r1b"), model.GCMPayload{}, false)

	if len(store.records) != 1 {
		t.Fatalf("store has %d records, want 1", len(store.records))
	}
	if _, ok := store.records[tokenKey{"r1b", model.PushKindGCM}]; !ok {
		t.Error("canonical id should remain")
	}
	if store.updateCalls != 0 {
		t.Error("nothing should be updated when the canonical id exists")
	}
}

func TestAndroidChannel_Send_CanonicalSameID(t *testing.T) {
	store := newFakeTokenStore()
	store.add(1, "r1", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Canonical["r1"] = "r1"
			return res, nil
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(store), nil)

	ch.Send(context.Background(), gcmDevices("r1"), model.GCMPayload{}, false)

	if store.mutations() != 0 {
		t.Error("an identical canonical id is a no-op")
	}
}

func TestAndroidChannel_Send_RemovesDeadTokens(t *testing.T) {
	store := newFakeTokenStore()
	store.add(1, "dead", model.PushKindGCM)
	store.add(1, "invalid", model.PushKindGCM)
	store.add(1, "busy", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Errors[GCMErrNotRegistered] = []string{"dead"}
			res.Errors[GCMErrInvalidRegistration] = []string{"invalid"}
			res.Errors["Unavailable"] = []string{"busy"}
			return res, nil
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(store), nil)

	ch.Send(context.Background(), gcmDevices("dead", "invalid", "busy"), model.GCMPayload{}, false)

	if len(store.records) != 1 {
		t.Fatalf("store has %d records, want 1", len(store.records))
	}
	if _, ok := store.records[tokenKey{"busy", model.PushKindGCM}]; !ok {
		t.Error("tokens with other errors must be kept")
	}
}

func TestAndroidChannel_Send_RemoteUsesRemoteDirectory(t *testing.T) {
	local := newFakeTokenStore()
	local.add(1, "dead", model.PushKindGCM)
	remote := newFakeTokenStore()
	remote.add(1, "dead", model.PushKindGCM)
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Errors[GCMErrNotRegistered] = tokens
			return res, nil
		},
	}
	ch := NewAndroidChannel(gw, NewLocalDirectory(local), NewLocalDirectory(remote))

	ch.Send(context.Background(), gcmDevices("dead"), model.GCMPayload{}, true)

	if len(remote.records) != 0 {
		t.Error("remote token should be removed")
	}
	if local.mutations() != 0 {
		t.Error("local directory must not be touched for relayed sends")
	}
}

func TestAndroidChannel_Send_RemoteWithoutDirectory(t *testing.T) {
	gw := &mockAndroidGateway{
		sendFn: func(ctx context.Context, tokens []string, payload model.GCMPayload) (*GCMResult, error) {
			res := newGCMResult()
			res.Errors[GCMErrNotRegistered] = tokens
			return res, nil
		},
	}
	local := newFakeTokenStore()
	ch := NewAndroidChannel(gw, NewLocalDirectory(local), nil)

	ch.Send(context.Background(), gcmDevices("dead"), model.GCMPayload{}, true)

	if local.mutations() != 0 {
		t.Error("local directory must not be touched for relayed sends")
	}
}

// =============================================================================
// FCM ERROR MAPPING
// =============================================================================

func TestFCMErrorCategory_Unknown(t *testing.T) {
	if got := fcmErrorCategory(errors.New("boom")); got != "Unknown" {
		t.Errorf("got %q, want %q", got, "Unknown")
	}
}
