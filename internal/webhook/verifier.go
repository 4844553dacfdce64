package webhook

import (
	"encoding/base64"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	apperrors "github.com/launchkit/polarbridge/internal/errors"
)

// Verifier checks Standard Webhooks signatures on incoming payloads.
// Polar signs deliveries with the raw webhook secret; the library wants
// it base64-encoded.
type Verifier struct {
	wh *standardwebhooks.Webhook
}

func NewVerifier(secret string) (*Verifier, error) {
	wh, err := standardwebhooks.NewWebhook(base64.StdEncoding.EncodeToString([]byte(secret)))
	if err != nil {
		return nil, err
	}
	return &Verifier{wh: wh}, nil
}

// Verify checks the signature headers against the raw request body.
// Any failure (missing headers, stale timestamp, bad signature) maps to
// ErrVerificationFailed so the handler can answer 403 uniformly.
func (v *Verifier) Verify(payload []byte, headers http.Header) error {
	if err := v.wh.Verify(payload, headers); err != nil {
		return apperrors.ErrVerificationFailed
	}
	return nil
}
