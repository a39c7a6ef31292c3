package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"

	"mobilepush/internal/httputil"
	"mobilepush/internal/model"
	"mobilepush/internal/service"
	"mobilepush/internal/transport/http/middleware"
)

// DeviceCounter counts a user's registered devices.
type DeviceCounter interface {
	Count(ctx context.Context, userID int64, kind *model.PushKind) (int, error)
}

type DeviceHandler struct {
	directory service.DeviceDirectory
	counter   DeviceCounter
}

func NewDeviceHandler(directory service.DeviceDirectory, counter DeviceCounter) *DeviceHandler {
	return &DeviceHandler{
		directory: directory,
		counter:   counter,
	}
}

// RegisterAPNs handles POST /api/v1/users/me/apns_device_token
func (h *DeviceHandler) RegisterAPNs(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, model.PushKindAPNS)
}

// UnregisterAPNs handles DELETE /api/v1/users/me/apns_device_token
func (h *DeviceHandler) UnregisterAPNs(w http.ResponseWriter, r *http.Request) {
	h.unregister(w, r, model.PushKindAPNS)
}

// RegisterGCM handles POST /api/v1/users/me/android_gcm_reg_id
func (h *DeviceHandler) RegisterGCM(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, model.PushKindGCM)
}

// UnregisterGCM handles DELETE /api/v1/users/me/android_gcm_reg_id
func (h *DeviceHandler) UnregisterGCM(w http.ResponseWriter, r *http.Request) {
	h.unregister(w, r, model.PushKindGCM)
}

// Count handles GET /api/v1/users/me/push_devices?kind=apns|gcm
// Without kind, devices of both gateways are counted.
func (h *DeviceHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var kind *model.PushKind
	switch r.URL.Query().Get("kind") {
	case "":
	case "apns":
		k := model.PushKindAPNS
		kind = &k
	case "gcm":
		k := model.PushKindGCM
		kind = &k
	default:
		httputil.WriteBadRequest(w, "Invalid token type")
		return
	}

	count, err := h.counter.Count(r.Context(), userID, kind)
	if err != nil {
		log.Printf("[ERROR] Count push devices: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to count push devices")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *DeviceHandler) register(w http.ResponseWriter, r *http.Request, kind model.PushKind) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	req, err := decodeTokenRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.directory.Register(r.Context(), userID, req.Token, kind, req.AppID); err != nil {
		writeDirectoryError(w, "register", userID, kind, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device registered",
	})
}

func (h *DeviceHandler) unregister(w http.ResponseWriter, r *http.Request, kind model.PushKind) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	req, err := decodeTokenRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.directory.Unregister(r.Context(), userID, req.Token, kind); err != nil {
		writeDirectoryError(w, "unregister", userID, kind, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device unregistered",
	})
}

// decodeTokenRequest accepts a JSON body or form values, since mobile
// clients post the token form-encoded.
func decodeTokenRequest(r *http.Request) (model.RegisterTokenRequest, error) {
	var req model.RegisterTokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Token = r.Form.Get("token")
	if appID := r.Form.Get("appid"); appID != "" {
		req.AppID = &appID
	}
	return req, nil
}

func writeDirectoryError(w http.ResponseWriter, op string, userID int64, kind model.PushKind, err error) {
	var clientErr *service.ClientError
	var bouncerErr *service.BouncerError
	var connErr *service.BouncerConnectionError

	switch {
	case errors.As(err, &clientErr):
		httputil.WriteBadRequest(w, clientErr.Msg)
	case errors.Is(err, model.ErrTokenNotFound):
		httputil.WriteBadRequest(w, "Token does not exist")
	case errors.As(err, &bouncerErr), errors.As(err, &connErr):
		log.Printf("[ERROR] %s push device via bouncer: user=%d kind=%s err=%v", op, userID, kind, err)
		httputil.WriteBadGateway(w, "Push notification service is unavailable")
	default:
		log.Printf("[ERROR] %s push device: user=%d kind=%s err=%v", op, userID, kind, err)
		httputil.WriteInternalError(w, "Failed to update push device")
	}
}
