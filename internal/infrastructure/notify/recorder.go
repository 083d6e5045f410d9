package notify

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
)

// Sent is one call captured by Recorder.
type Sent struct {
	Kind    string
	To      string
	OrderID string
	Status  domain.OrderStatus
	Code    string
	Link    string
}

// Recorder is a Notifier that captures calls, optionally failing them with Err.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) SendLoginCode(_ context.Context, email, code string, _ time.Duration) error {
	return r.record(Sent{Kind: "login_code", To: email, Code: code})
}

func (r *Recorder) SendOrderConfirmation(_ context.Context, order domain.Order) error {
	return r.record(Sent{Kind: "order_confirmation", To: order.ShippingAddress.Email, OrderID: order.OrderID, Status: order.Status})
}

func (r *Recorder) SendStatusUpdate(_ context.Context, order domain.Order) error {
	return r.record(Sent{
		Kind:    "status_update",
		To:      order.ShippingAddress.Email,
		OrderID: order.OrderID,
		Status:  order.Status,
		Link:    order.TrackingLink,
	})
}

// Sent returns the captured calls, including failed ones.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Count returns how many calls of kind were captured.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, s := range r.Sent() {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Err
}
