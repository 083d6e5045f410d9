package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Razorpay-Signature"

	EventPaymentLinkPaid = "payment_link.paid"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC of the exact raw body.
// An empty signature or secret never verifies.
func VerifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

type entity[T any] struct {
	Entity T `json:"entity"`
}

// Event is the subset of a gateway callback the workflow reads.
type Event struct {
	Type      string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		PaymentLink entity[struct {
			ID          string `json:"id"`
			ReferenceID string `json:"reference_id"`
			Status      string `json:"status"`
		}] `json:"payment_link"`
		Payment entity[struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			CreatedAt int64  `json:"created_at"`
		}] `json:"payment"`
	} `json:"payload"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(body, &ev)
	return ev, err
}

func (e Event) LinkID() string    { return e.Payload.PaymentLink.Entity.ID }
func (e Event) PaymentID() string { return e.Payload.Payment.Entity.ID }

// PaidAt is the gateway's payment timestamp, falling back to the event time
// and then to now.
func (e Event) PaidAt(now time.Time) time.Time {
	switch {
	case e.Payload.Payment.Entity.CreatedAt > 0:
		return time.Unix(e.Payload.Payment.Entity.CreatedAt, 0).UTC()
	case e.CreatedAt > 0:
		return time.Unix(e.CreatedAt, 0).UTC()
	default:
		return now.UTC()
	}
}
