package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mobilepush/internal/handler"
	"mobilepush/internal/httputil"
	authmw "mobilepush/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes.
// RemotePushHandler is nil unless this server acts as a push relay.
type RouterConfig struct {
	DeviceHandler     *handler.DeviceHandler
	RemotePushHandler *handler.RemotePushHandler
	RemoteServerAuth  authmw.RemoteServerAuthenticator
	JWTSecret         string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Device registration for this server's users
	r.Route("/api/v1/users/me", func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/apns_device_token", cfg.DeviceHandler.RegisterAPNs)
		r.Delete("/apns_device_token", cfg.DeviceHandler.UnregisterAPNs)
		r.Post("/android_gcm_reg_id", cfg.DeviceHandler.RegisterGCM)
		r.Delete("/android_gcm_reg_id", cfg.DeviceHandler.UnregisterGCM)
		r.Get("/push_devices", cfg.DeviceHandler.Count)
	})

	// Relay API for other servers
	if cfg.RemotePushHandler != nil {
		r.Post("/api/v1/remotes/server/register", cfg.RemotePushHandler.CreateServer)

		r.Route("/api/v1/remotes/push", func(r chi.Router) {
			r.Use(authmw.RemoteServerAuth(cfg.RemoteServerAuth))

			r.Post("/register", cfg.RemotePushHandler.Register)
			r.Post("/unregister", cfg.RemotePushHandler.Unregister)
			r.Post("/notify", cfg.RemotePushHandler.Notify)
		})
	}

	return r
}
