package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mobilepush/internal/model"
)

// =============================================================================
// IN-MEMORY RELAY STORES
// =============================================================================

type fakeServerStore struct {
	byUUID map[string]*model.RemoteServer
}

func newFakeServerStore() *fakeServerStore {
	return &fakeServerStore{byUUID: map[string]*model.RemoteServer{}}
}

func (s *fakeServerStore) GetByUUID(ctx context.Context, uuid string) (*model.RemoteServer, error) {
	server, ok := s.byUUID[uuid]
	if !ok {
		return nil, model.ErrRemoteServerNotFound
	}
	return server, nil
}

func (s *fakeServerStore) Create(ctx context.Context, server *model.RemoteServer) error {
	server.ID = int64(len(s.byUUID) + 1)
	s.byUUID[server.UUID] = server
	return nil
}

// fakeRemoteTokenStore keys records by server as well as token.
type fakeRemoteTokenStore struct {
	records []model.RemoteDeviceToken
	nextID  int64
}

func (s *fakeRemoteTokenStore) find(token string, kind model.PushKind) int {
	for i, r := range s.records {
		if r.Token == token && r.Kind == kind {
			return i
		}
	}
	return -1
}

func (s *fakeRemoteTokenStore) Exists(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	return s.find(token, kind) >= 0, nil
}

func (s *fakeRemoteTokenStore) UpdateToken(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	for i := range s.records {
		if s.records[i].Token == oldToken && s.records[i].Kind == kind {
			s.records[i].Token = newToken
		}
	}
	return nil
}

func (s *fakeRemoteTokenStore) Delete(ctx context.Context, token string, kind model.PushKind) error {
	i := s.find(token, kind)
	if i < 0 {
		return model.ErrTokenNotFound
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return nil
}

func (s *fakeRemoteTokenStore) Register(ctx context.Context, serverID, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error) {
	for _, r := range s.records {
		if r.ServerID == serverID && r.UserID == userID && r.Token == token && r.Kind == kind {
			return false, nil
		}
	}
	s.nextID++
	s.records = append(s.records, model.RemoteDeviceToken{
		ServerID: serverID,
		DeviceToken: model.DeviceToken{
			ID: s.nextID, UserID: userID, Kind: kind, Token: token, IOSAppID: iosAppID,
		},
	})
	return true, nil
}

func (s *fakeRemoteTokenStore) DeleteForServer(ctx context.Context, serverID int64, token string, kind model.PushKind) error {
	for i, r := range s.records {
		if r.ServerID == serverID && r.Token == token && r.Kind == kind {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return model.ErrTokenNotFound
}

func (s *fakeRemoteTokenStore) ListByUser(ctx context.Context, serverID, userID int64, kind model.PushKind) ([]model.RemoteDeviceToken, error) {
	var out []model.RemoteDeviceToken
	for _, r := range s.records {
		if r.ServerID == serverID && r.UserID == userID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

type relayFixture struct {
	servers *fakeServerStore
	tokens  *fakeRemoteTokenStore
	apple   *mockAppleSender
	android *mockAndroidSender
	svc     *RemotePushService
	server  *model.RemoteServer
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	f := &relayFixture{
		servers: newFakeServerStore(),
		tokens:  &fakeRemoteTokenStore{},
		apple:   &mockAppleSender{},
		android: &mockAndroidSender{},
	}
	f.svc = NewRemotePushService(f.servers, f.tokens, f.apple, f.android)
	server, err := f.svc.CreateServer(context.Background(), "6cde5f7a-1f7e-4978-9716-49f69ebfc9fe", "secret", "chat.example.com", "admin@example.com")
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	f.server = server
	return f
}

// =============================================================================
// SERVER REGISTRATION AND AUTH
// =============================================================================

func TestRemotePushService_CreateServer(t *testing.T) {
	f := newRelayFixture(t)

	if f.server.APIKeyHash == "secret" || f.server.APIKeyHash == "" {
		t.Error("only a hash of the api key should be stored")
	}

	generated, err := f.svc.CreateServer(context.Background(), "", "other", "b.example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(generated.UUID) != 36 {
		t.Errorf("generated uuid = %q", generated.UUID)
	}
}

func TestRemotePushService_CreateServer_Invalid(t *testing.T) {
	f := newRelayFixture(t)

	for name, args := range map[string][2]string{
		"bad uuid":    {"not-a-uuid", "secret"},
		"missing key": {"", ""},
	} {
		_, err := f.svc.CreateServer(context.Background(), args[0], args[1], "h", "")
		var ce *ClientError
		if !errors.As(err, &ce) {
			t.Errorf("%s: error = %v, want *ClientError", name, err)
		}
	}
}

func TestRemotePushService_Authenticate(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()

	got, err := f.svc.Authenticate(ctx, f.server.UUID, "secret")
	if err != nil || got.ID != f.server.ID {
		t.Fatalf("valid credentials rejected: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, f.server.UUID, "wrong"); !errors.Is(err, model.ErrInvalidServerCredentials) {
		t.Errorf("wrong key: error = %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "a2f7b0b4-0000-4000-8000-000000000000", "secret"); !errors.Is(err, model.ErrInvalidServerCredentials) {
		t.Errorf("unknown server: error = %v", err)
	}
}

// =============================================================================
// DEVICE REGISTRATION
// =============================================================================

func TestRemotePushService_RegisterAndUnregister(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()
	req := model.RemoteRegisterRequest{UserID: 5, Token: testAPNsStored, TokenKind: model.PushKindAPNS}

	if err := f.svc.RegisterDevice(ctx, f.server, req); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.RegisterDevice(ctx, f.server, req); err != nil {
		t.Fatalf("register again: %v", err)
	}
	if len(f.tokens.records) != 1 {
		t.Errorf("got %d records, want 1", len(f.tokens.records))
	}

	if err := f.svc.UnregisterDevice(ctx, f.server, req); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	err := f.svc.UnregisterDevice(ctx, f.server, req)
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Msg != "Token does not exist" {
		t.Errorf("second unregister: error = %v", err)
	}
}

func TestRemotePushService_RegisterDevice_RejectsHexAPNsToken(t *testing.T) {
	f := newRelayFixture(t)
	req := model.RemoteRegisterRequest{UserID: 5, Token: "zz-not-base64", TokenKind: model.PushKindAPNS}

	err := f.svc.RegisterDevice(context.Background(), f.server, req)

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Msg != "Invalid APNS token" {
		t.Errorf("error = %v", err)
	}
}

// =============================================================================
// NOTIFY
// =============================================================================

func TestRemotePushService_Notify(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()
	_ = f.svc.RegisterDevice(ctx, f.server, model.RemoteRegisterRequest{UserID: 5, Token: testAPNsStored, TokenKind: model.PushKindAPNS})
	_ = f.svc.RegisterDevice(ctx, f.server, model.RemoteRegisterRequest{UserID: 5, Token: "gcm-1", TokenKind: model.PushKindGCM})
	_ = f.svc.RegisterDevice(ctx, f.server, model.RemoteRegisterRequest{UserID: 6, Token: "gcm-2", TokenKind: model.PushKindGCM})

	apns, _ := json.Marshal(testAPNsPayload())
	err := f.svc.Notify(ctx, f.server, model.RemoteNotifyRequest{
		UserID:      5,
		APNsPayload: apns,
		GCMPayload:  model.GCMPayload{Event: "message"},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.android.calls != 1 || !f.android.remote || len(f.android.devices) != 1 || f.android.devices[0].Token != "gcm-1" {
		t.Errorf("android: %+v", f.android)
	}
	if f.apple.calls != 1 || f.apple.payload.Alert.Title != "Alice" {
		t.Errorf("apple: %+v", f.apple)
	}
}

func TestRemotePushService_Notify_ModernizesLegacyPayload(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()
	_ = f.svc.RegisterDevice(ctx, f.server, model.RemoteRegisterRequest{UserID: 5, Token: testAPNsStored, TokenKind: model.PushKindAPNS})

	err := f.svc.Notify(ctx, f.server, model.RemoteNotifyRequest{
		UserID:      5,
		APNsPayload: json.RawMessage(`{"alert":"New mention from Alice","message_ids":[3]}`),
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.apple.payload.Alert.Text != "New mention from Alice" {
		t.Errorf("alert = %+v", f.apple.payload.Alert)
	}
	if ids := f.apple.payload.Custom.Zulip.MessageIDs; len(ids) != 1 || ids[0] != 3 {
		t.Errorf("message_ids = %v", ids)
	}
	if f.android.calls != 0 {
		t.Error("no android devices are registered")
	}
}

func TestRemotePushService_Notify_InvalidPayload(t *testing.T) {
	f := newRelayFixture(t)

	err := f.svc.Notify(context.Background(), f.server, model.RemoteNotifyRequest{
		UserID:      5,
		APNsPayload: json.RawMessage(`[1,2]`),
	})

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Errorf("error = %v, want *ClientError", err)
	}
}

// =============================================================================
// REMOTE DIRECTORY
// =============================================================================

func TestRemoteDirectory_ReconcilesAcrossServers(t *testing.T) {
	tokens := &fakeRemoteTokenStore{}
	_, _ = tokens.Register(context.Background(), 1, 5, "old", model.PushKindGCM, nil)
	dir := NewRemoteDirectory(tokens)

	if err := dir.ReassignCanonical(context.Background(), "old", "new", model.PushKindGCM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := dir.Has(context.Background(), "new", model.PushKindGCM); !ok {
		t.Error("canonical id should be stored")
	}
	if err := dir.Remove(context.Background(), "new", model.PushKindGCM); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens.records) != 0 {
		t.Error("token should be removed")
	}
}
