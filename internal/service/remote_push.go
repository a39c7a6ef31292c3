package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mobilepush/internal/model"
	"mobilepush/internal/repository"
)

// RemotePushService is the relay side of the bouncer protocol: other
// servers register their users' devices here and ask it to deliver.
type RemotePushService struct {
	servers repository.RemoteServerRepository
	tokens  repository.RemoteDeviceTokenRepository
	apple   AppleSender
	android AndroidSender
}

func NewRemotePushService(
	servers repository.RemoteServerRepository,
	tokens repository.RemoteDeviceTokenRepository,
	apple AppleSender,
	android AndroidSender,
) *RemotePushService {
	return &RemotePushService{
		servers: servers,
		tokens:  tokens,
		apple:   apple,
		android: android,
	}
}

// CreateServer registers a server with the relay. A UUID is generated when
// serverUUID is empty. Only a bcrypt hash of apiKey is stored.
func (s *RemotePushService) CreateServer(ctx context.Context, serverUUID, apiKey, hostname, contactEmail string) (*model.RemoteServer, error) {
	if serverUUID == "" {
		serverUUID = uuid.NewString()
	} else if _, err := uuid.Parse(serverUUID); err != nil {
		return nil, &ClientError{Msg: "Invalid server UUID"}
	}
	if apiKey == "" {
		return nil, &ClientError{Msg: "Missing API key"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	server := &model.RemoteServer{
		UUID:         serverUUID,
		APIKeyHash:   string(hash),
		Hostname:     hostname,
		ContactEmail: contactEmail,
	}
	if err := s.servers.Create(ctx, server); err != nil {
		return nil, err
	}
	log.Printf("[Bouncer] Registered remote server %s (%s)", server.UUID, server.Hostname)
	return server, nil
}

// Authenticate checks a server's basic-auth credentials. Unknown servers
// and wrong keys both return model.ErrInvalidServerCredentials.
func (s *RemotePushService) Authenticate(ctx context.Context, serverUUID, apiKey string) (*model.RemoteServer, error) {
	server, err := s.servers.GetByUUID(ctx, serverUUID)
	if err != nil {
		if errors.Is(err, model.ErrRemoteServerNotFound) {
			return nil, model.ErrInvalidServerCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(server.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, model.ErrInvalidServerCredentials
	}
	return server, nil
}

// validateRemoteToken checks a token as forwarded by a server. Tokens
// arrive in stored form, so APNs tokens must be valid base64.
func validateRemoteToken(token string, kind model.PushKind) error {
	if !kind.Valid() {
		return &ClientError{Msg: "Invalid token type"}
	}
	if token == "" || len(token) > maxTokenLength {
		return &ClientError{Msg: "Empty or invalid length token"}
	}
	if kind == model.PushKindAPNS {
		if _, err := DecodeForTransport(token); err != nil {
			return &ClientError{Msg: "Invalid APNS token"}
		}
	}
	return nil
}

// RegisterDevice records a token for one of server's users.
func (s *RemotePushService) RegisterDevice(ctx context.Context, server *model.RemoteServer, req model.RemoteRegisterRequest) error {
	if err := validateRemoteToken(req.Token, req.TokenKind); err != nil {
		return err
	}
	iosAppID := req.IOSAppID
	if req.TokenKind != model.PushKindAPNS {
		iosAppID = nil
	}

	created, err := s.tokens.Register(ctx, server.ID, req.UserID, req.Token, req.TokenKind, iosAppID)
	if err != nil {
		return err
	}
	log.Printf("[Bouncer] Remote device registered: server=%s user=%d kind=%s created=%t",
		server.UUID, req.UserID, req.TokenKind, created)
	return nil
}

// UnregisterDevice removes a token the server registered earlier.
func (s *RemotePushService) UnregisterDevice(ctx context.Context, server *model.RemoteServer, req model.RemoteRegisterRequest) error {
	if err := validateRemoteToken(req.Token, req.TokenKind); err != nil {
		return err
	}
	err := s.tokens.DeleteForServer(ctx, server.ID, req.Token, req.TokenKind)
	if errors.Is(err, model.ErrTokenNotFound) {
		return &ClientError{Msg: "Token does not exist"}
	}
	return err
}

// Notify delivers both payloads to the server user's devices. Apple
// payloads from older servers are upgraded first.
func (s *RemotePushService) Notify(ctx context.Context, server *model.RemoteServer, req model.RemoteNotifyRequest) error {
	apnsPayload, err := model.ParseAPNsPayload(req.APNsPayload)
	if err != nil {
		return &ClientError{Msg: "Invalid APNs payload"}
	}

	android, err := s.tokens.ListByUser(ctx, server.ID, req.UserID, model.PushKindGCM)
	if err != nil {
		return err
	}
	apple, err := s.tokens.ListByUser(ctx, server.ID, req.UserID, model.PushKindAPNS)
	if err != nil {
		return err
	}
	log.Printf("[Bouncer] Notify: server=%s user=%d apns=%d gcm=%d",
		server.UUID, req.UserID, len(apple), len(android))

	if len(android) > 0 {
		s.android.Send(ctx, deviceTokens(android), req.GCMPayload, true)
	}
	if len(apple) > 0 {
		s.apple.Send(ctx, req.UserID, deviceTokens(apple), *apnsPayload)
	}
	return nil
}

func deviceTokens(remote []model.RemoteDeviceToken) []model.DeviceToken {
	out := make([]model.DeviceToken, 0, len(remote))
	for _, r := range remote {
		out = append(out, r.DeviceToken)
	}
	return out
}

// RemoteDirectory applies gateway feedback to tokens registered through
// the relay.
type RemoteDirectory struct {
	tokens repository.RemoteDeviceTokenRepository
}

func NewRemoteDirectory(tokens repository.RemoteDeviceTokenRepository) *RemoteDirectory {
	return &RemoteDirectory{tokens: tokens}
}

func (d *RemoteDirectory) Has(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	return d.tokens.Exists(ctx, token, kind)
}

func (d *RemoteDirectory) ReassignCanonical(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	return d.tokens.UpdateToken(ctx, oldToken, newToken, kind)
}

func (d *RemoteDirectory) Remove(ctx context.Context, token string, kind model.PushKind) error {
	return d.tokens.Delete(ctx, token, kind)
}
