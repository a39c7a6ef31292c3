package model

import "errors"

var (
	// ErrMalformedToken is returned when a device token is not in the
	// expected encoding.
	ErrMalformedToken = errors.New("malformed device token")

	// ErrTokenNotFound is returned when unregistering a token that is not registered
	ErrTokenNotFound = errors.New("token does not exist")

	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserMessageNotFound is returned when a user has no record of a message
	ErrUserMessageNotFound = errors.New("user message not found")

	// ErrRemoteServerNotFound is returned for an unknown relay server UUID
	ErrRemoteServerNotFound = errors.New("remote server not found")

	// ErrInvalidServerCredentials is returned when a relay server's UUID or
	// API key does not match a registered server
	ErrInvalidServerCredentials = errors.New("invalid zulip server")

	// ErrGatewayUnavailable is returned when a push gateway cannot be reached
	// after all retries.
	ErrGatewayUnavailable = errors.New("push gateway unavailable")
)
