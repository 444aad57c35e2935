// Package easypost handles inbound EasyPost tracker webhooks: signature
// verification and payload parsing. It knows nothing about orders or
// notifications; it only turns raw bytes into typed events.
package easypost

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader is the request header carrying the HMAC of the raw body.
const SignatureHeader = "X-Hmac-Signature"

// signaturePrefix is the scheme prefix EasyPost puts in front of the hex
// digest. Bare hex digests are accepted too.
const signaturePrefix = "hmac-sha256-hex="

// Event is a parsed EasyPost webhook event. Result is only populated for
// tracker events.
type Event struct {
	ID          string  `json:"id"`
	Object      string  `json:"object"`
	Description string  `json:"description"`
	Result      Tracker `json:"result"`
}

// Tracker is the tracker object embedded in a tracker.updated event.
type Tracker struct {
	TrackingCode    string           `json:"tracking_code"`
	Carrier         string           `json:"carrier"`
	Status          string           `json:"status"`
	PublicURL       string           `json:"public_url,omitempty"`
	TrackingDetails []TrackingDetail `json:"tracking_details"`
}

// TrackingDetail is one entry in a tracker's history. The provider returns
// the list newest-first; index 0 is treated as the latest event everywhere
// downstream.
type TrackingDetail struct {
	Status           string           `json:"status"`
	Message          string           `json:"message"`
	Datetime         string           `json:"datetime"`
	TrackingLocation TrackingLocation `json:"tracking_location"`
}

// TrackingLocation is the where of a tracking detail.
type TrackingLocation struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// OccurredAt parses the detail's timestamp. Returns the zero time when the
// provider omitted or mangled it; callers fall back to "now".
func (d TrackingDetail) OccurredAt() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, d.Datetime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// VerifySignature checks that signature is the HMAC-SHA256 hex digest of
// body under secret. Comparison is constant-time regardless of where the
// strings differ.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Sign computes the signature header value for body. Used by tests and by
// outbound webhook simulation tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent decodes a raw webhook body. It fails when the body is not a
// JSON object or the provider event id is missing; it does not validate the
// tracker payload (that is the processor's concern).
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("webhook event has no id")
	}
	return &ev, nil
}
