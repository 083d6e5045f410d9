package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderPaid      OrderStatus = "Paid"
	OrderPackaging OrderStatus = "Packaging"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// statusRank orders the fulfillment lifecycle; Cancelled sits outside it.
var statusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderPaid:      1,
	OrderPackaging: 2,
	OrderShipped:   3,
	OrderDelivered: 4,
}

// OrderStatuses lists every accepted status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending, OrderPaid, OrderPackaging, OrderShipped, OrderDelivered, OrderCancelled,
}

// ParseOrderStatus resolves s against the closed status set, ignoring case
// and surrounding whitespace.
func ParseOrderStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range OrderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo reports whether an operator may move an order from s to next.
// Moves go forward through Pending→Paid→Packaging→Shipped→Delivered (skipping
// steps is allowed) and Cancelled is reachable from any non-terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type OrderItem struct {
	ProductID string
	Name      string
	Image     string
	Price     decimal.Decimal
	Quantity  int
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Name    string
	Phone   string
	Email   string
	Address string
	City    string
	Pincode string
}

// Validate requires every field of the address and a well-formed email.
func (a ShippingAddress) Validate() error {
	fields := []struct{ name, value string }{
		{"name", a.Name},
		{"phone", a.Phone},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"pincode", a.Pincode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: "shipping_address." + f.name, Reason: "is required"}
		}
	}
	if _, err := NormalizeEmail(a.Email); err != nil {
		return &ValidationError{Field: "shipping_address.email", Reason: "is not a valid address"}
	}
	return nil
}

type Order struct {
	OrderID            string
	UserID             uuid.UUID
	Items              []OrderItem
	ShippingAddress    ShippingAddress
	CouponCode         string
	DiscountPercent    decimal.Decimal
	DiscountAmount     decimal.Decimal
	Subtotal           decimal.Decimal
	TotalAmount        decimal.Decimal
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	GatewayReferenceID string
	PaymentURL         string
	GatewayPaymentID   string
	PaidAt             *time.Time
	TrackingLink       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ValidateItems rejects an empty cart and malformed lines.
func ValidateItems(items []OrderItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Name) == "" {
			return &ValidationError{Field: field + ".name", Reason: "is required"}
		}
		if it.Price.IsNegative() {
			return &ValidationError{Field: field + ".price", Reason: "must not be negative"}
		}
		if it.Quantity < 1 {
			return &ValidationError{Field: field + ".quantity", Reason: "must be at least 1"}
		}
	}
	return nil
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewOrderID returns a sortable, URL-safe order identifier such as
// "ORD-01J9ZQ6W3T2V8C5XKQ4N7M1B0A".
func NewOrderID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}
