package telephony

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Verifier authenticates a PBX delivery before any of it is processed.
// A non-nil error rejects the request with 401.
type Verifier interface {
	Verify(r *http.Request, env Envelope) error
}

// NopVerifier accepts every delivery.
type NopVerifier struct{}

func (NopVerifier) Verify(*http.Request, Envelope) error { return nil }

const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
)

// SignatureVerifier checks the PBX account key and the request signature
// hex(sha256(key + payload + salt)). Headers take precedence over the
// vpbx_api_key and sign form fields.
type SignatureVerifier struct {
	APIKey string
	Salt   string
}

func (v SignatureVerifier) Verify(r *http.Request, env Envelope) error {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if key == "" {
		key = env.APIKey
	}
	sign := strings.TrimSpace(r.Header.Get(HeaderSignature))
	if sign == "" {
		sign = env.Sign
	}
	if key == "" || sign == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(v.APIKey)) != 1 {
		return ErrUnauthorized
	}
	want := Sign(v.APIKey, env.Payload, v.Salt)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(sign)), []byte(want)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Sign returns the lowercase hex signature the PBX attaches to payload.
func Sign(key string, payload []byte, salt string) string {
	h := sha256.New()
	h.Write([]byte(key))
	h.Write(payload)
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}
