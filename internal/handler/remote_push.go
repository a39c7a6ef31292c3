package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mobilepush/internal/httputil"
	"mobilepush/internal/model"
	"mobilepush/internal/service"
	"mobilepush/internal/transport/http/middleware"
)

// RemotePushHandler serves the relay API used by other servers.
type RemotePushHandler struct {
	remotePush *service.RemotePushService
}

func NewRemotePushHandler(remotePush *service.RemotePushService) *RemotePushHandler {
	return &RemotePushHandler{remotePush: remotePush}
}

// createServerRequest is the body of POST /api/v1/remotes/server/register
type createServerRequest struct {
	ServerUUID   string `json:"zulip_org_id"`
	APIKey       string `json:"zulip_org_key"`
	Hostname     string `json:"hostname"`
	ContactEmail string `json:"contact_email"`
}

// CreateServer handles POST /api/v1/remotes/server/register
// A server picks its own UUID and key and registers them once.
func (h *RemotePushHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteRelayError(w, http.StatusBadRequest, httputil.RelayCodeBadRequest, "Invalid request body")
		return
	}
	if req.Hostname == "" || req.ContactEmail == "" {
		httputil.WriteRelayError(w, http.StatusBadRequest, httputil.RelayCodeBadRequest,
			"hostname and contact_email are required")
		return
	}

	server, err := h.remotePush.CreateServer(r.Context(), req.ServerUUID, req.APIKey, req.Hostname, req.ContactEmail)
	if err != nil {
		writeRelayError(w, "create server", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"result":       "success",
		"zulip_org_id": server.UUID,
	})
}

// Register handles POST /api/v1/remotes/push/register
func (h *RemotePushHandler) Register(w http.ResponseWriter, r *http.Request) {
	server, req, ok := decodeRemoteRegister(w, r)
	if !ok {
		return
	}
	if err := h.remotePush.RegisterDevice(r.Context(), server, req); err != nil {
		writeRelayError(w, "register", err)
		return
	}
	httputil.WriteRelaySuccess(w)
}

// Unregister handles POST /api/v1/remotes/push/unregister
func (h *RemotePushHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	server, req, ok := decodeRemoteRegister(w, r)
	if !ok {
		return
	}
	if err := h.remotePush.UnregisterDevice(r.Context(), server, req); err != nil {
		writeRelayError(w, "unregister", err)
		return
	}
	httputil.WriteRelaySuccess(w)
}

// Notify handles POST /api/v1/remotes/push/notify
func (h *RemotePushHandler) Notify(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetRemoteServerFromContext(r.Context())
	if !ok {
		httputil.WriteRelayError(w, http.StatusUnauthorized, httputil.RelayCodeInvalidZulipServer, "Authentication required")
		return
	}

	var req model.RemoteNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteRelayError(w, http.StatusBadRequest, httputil.RelayCodeBadRequest, "Invalid request body")
		return
	}

	if err := h.remotePush.Notify(r.Context(), server, req); err != nil {
		writeRelayError(w, "notify", err)
		return
	}
	httputil.WriteRelaySuccess(w)
}

func decodeRemoteRegister(w http.ResponseWriter, r *http.Request) (*model.RemoteServer, model.RemoteRegisterRequest, bool) {
	var req model.RemoteRegisterRequest
	server, ok := middleware.GetRemoteServerFromContext(r.Context())
	if !ok {
		httputil.WriteRelayError(w, http.StatusUnauthorized, httputil.RelayCodeInvalidZulipServer, "Authentication required")
		return nil, req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteRelayError(w, http.StatusBadRequest, httputil.RelayCodeBadRequest, "Invalid request body")
		return nil, req, false
	}
	if req.ServerUUID != "" && req.ServerUUID != server.UUID {
		httputil.WriteRelayError(w, http.StatusUnauthorized, httputil.RelayCodeInvalidZulipServer,
			"Server UUID does not match credentials")
		return nil, req, false
	}
	return server, req, true
}

func writeRelayError(w http.ResponseWriter, op string, err error) {
	var clientErr *service.ClientError
	if errors.As(err, &clientErr) {
		httputil.WriteRelayError(w, http.StatusBadRequest, httputil.RelayCodeBadRequest, clientErr.Msg)
		return
	}
	log.Printf("[ERROR] Relay %s: %v", op, err)
	httputil.WriteRelayError(w, http.StatusInternalServerError, httputil.RelayCodeInternal, "Internal server error")
}
