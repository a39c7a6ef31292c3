package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error codes of the local API
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadGateway   = "BAD_GATEWAY"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"
)

// Error codes of the relay API. Relay clients match on these.
const (
	RelayCodeBadRequest         = "BAD_REQUEST"
	RelayCodeInvalidZulipServer = "INVALID_ZULIP_SERVER"
	RelayCodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent
			log.Printf("[ERROR] Encode response: %v", err)
		}
	}
}

// WriteError writes an error response in the local API format:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	response := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
	WriteJSON(w, status, response)
}

// Common error response helpers

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteUnauthorizedWithCode writes a 401 Unauthorized error with a custom code
func WriteUnauthorizedWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// WriteBadGateway writes a 502 for failures of an upstream push service
func WriteBadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, ErrCodeBadGateway, message)
}

// RelayResponse is the relay API's response envelope:
// {"result": "success"} or {"result": "error", "msg": "...", "code": "..."}
type RelayResponse struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Code   string `json:"code,omitempty"`
}

// WriteRelaySuccess writes the relay API's success envelope
func WriteRelaySuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, RelayResponse{Result: "success"})
}

// WriteRelayError writes the relay API's error envelope
func WriteRelayError(w http.ResponseWriter, status int, code string, msg string) {
	WriteJSON(w, status, RelayResponse{Result: "error", Msg: msg, Code: code})
}
