package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"mobilepush/internal/handler"
	"mobilepush/internal/model"
)

type stubDirectory struct {
	registered []string
}

func (s *stubDirectory) Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) error {
	s.registered = append(s.registered, token)
	return nil
}

func (s *stubDirectory) Unregister(ctx context.Context, userID int64, token string, kind model.PushKind) error {
	return nil
}

type stubCounter struct{}

func (stubCounter) Count(ctx context.Context, userID int64, kind *model.PushKind) (int, error) {
	return 0, nil
}

func newTestRouter(dir *stubDirectory) stdhttp.Handler {
	return NewRouter(RouterConfig{
		DeviceHandler: handler.NewDeviceHandler(dir, stubCounter{}),
		JWTSecret:     "router-secret",
	})
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()

	newTestRouter(&stubDirectory{}).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/health", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()

	newTestRouter(&stubDirectory{}).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRouter_DeviceRoutesRequireAuth(t *testing.T) {
	dir := &stubDirectory{}
	router := newTestRouter(dir)
	body := "token=aabbccdd"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/users/me/apns_device_token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(rec, req)
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("without a token: status = %d, want 401", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 3}).SignedString([]byte("router-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(stdhttp.MethodPost, "/api/v1/users/me/apns_device_token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("with a token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(dir.registered) != 1 || dir.registered[0] != "aabbccdd" {
		t.Errorf("registered = %v", dir.registered)
	}
}

func TestRouter_RelayDisabledByDefault(t *testing.T) {
	rec := httptest.NewRecorder()

	newTestRouter(&stubDirectory{}).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/api/v1/remotes/push/notify", nil))

	if rec.Code != stdhttp.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
