package service

import "fmt"

// BouncerError means the relay misbehaved or rejected this server's
// identity. It needs the attention of whoever operates this server.
type BouncerError struct {
	Msg string
}

func (e *BouncerError) Error() string {
	return e.Msg
}

// ClientError is a request error the caller can correct, such as
// unregistering an unknown token. Msg is shown to the caller as is.
type ClientError struct {
	Msg string
}

func (e *ClientError) Error() string {
	return e.Msg
}

// BouncerConnectionError wraps a transport failure talking to the relay.
// The request may never have reached it, so the event is safe to retry.
type BouncerConnectionError struct {
	Err error
}

func (e *BouncerConnectionError) Error() string {
	return fmt.Sprintf("connect to push notification bouncer: %v", e.Err)
}

func (e *BouncerConnectionError) Unwrap() error {
	return e.Err
}
