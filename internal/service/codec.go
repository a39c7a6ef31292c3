package service

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"mobilepush/internal/model"
)

// APNs tokens are stored base64-encoded, but the APNs client wants hex.

// DecodeForTransport converts a stored (base64) APNs token to hex.
func DecodeForTransport(stored string) (string, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(stored)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("%w: not base64: %q", model.ErrMalformedToken, stored)
	}
	return hex.EncodeToString(raw), nil
}

// EncodeForStorage converts a hex APNs token, as reported by iOS, to the
// stored base64 form.
func EncodeForStorage(transport string) (string, error) {
	raw, err := hex.DecodeString(transport)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("%w: not hex: %q", model.ErrMalformedToken, transport)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
