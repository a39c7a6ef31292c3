package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"mobilepush/internal/httputil"
	"mobilepush/internal/model"
)

const (
	// RemoteServerKey is the context key for the authenticated relay client
	RemoteServerKey contextKey = "remote_server"
)

// RemoteServerAuthenticator checks a relay client's credentials.
type RemoteServerAuthenticator interface {
	Authenticate(ctx context.Context, serverUUID, apiKey string) (*model.RemoteServer, error)
}

// RemoteServerAuth authenticates relay clients with HTTP Basic: the server
// UUID as user name and its API key as password.
func RemoteServerAuth(auth RemoteServerAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serverUUID, apiKey, ok := r.BasicAuth()
			if !ok {
				httputil.WriteRelayError(w, http.StatusUnauthorized, httputil.RelayCodeInvalidZulipServer,
					"Missing server credentials")
				return
			}

			server, err := auth.Authenticate(r.Context(), serverUUID, apiKey)
			if err != nil {
				if errors.Is(err, model.ErrInvalidServerCredentials) {
					httputil.WriteRelayError(w, http.StatusUnauthorized, httputil.RelayCodeInvalidZulipServer,
						"Zulip server auth failure: "+serverUUID+" is not registered")
					return
				}
				log.Printf("[ERROR] Authenticate remote server %s: %v", serverUUID, err)
				httputil.WriteRelayError(w, http.StatusInternalServerError, httputil.RelayCodeInternal,
					"Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), RemoteServerKey, server)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRemoteServerFromContext returns the relay client set by RemoteServerAuth
func GetRemoteServerFromContext(ctx context.Context) (*model.RemoteServer, bool) {
	server, ok := ctx.Value(RemoteServerKey).(*model.RemoteServer)
	return server, ok
}
