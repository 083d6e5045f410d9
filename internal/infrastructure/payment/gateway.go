package payment

import (
	"context"
	"errors"
	"time"
)

// LinkStatus mirrors the lifecycle of a hosted payment link.
type LinkStatus string

const (
	LinkCreated       LinkStatus = "created"
	LinkPartiallyPaid LinkStatus = "partially_paid"
	LinkPaid          LinkStatus = "paid"
	LinkExpired       LinkStatus = "expired"
	LinkCancelled     LinkStatus = "cancelled"
)

// Closed reports whether no further payment can arrive on the link.
func (s LinkStatus) Closed() bool {
	return s == LinkExpired || s == LinkCancelled
}

var ErrLinkNotFound = errors.New("payment link not found")

type Customer struct {
	Name  string
	Email string
	Phone string
}

type LinkRequest struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Description string
	Customer    Customer
	CallbackURL string
	// ExpiresAt closes the link for payment once passed. Zero means the
	// gateway default.
	ExpiresAt time.Time
}

type Link struct {
	ReferenceID string
	URL         string
}

type LinkDetails struct {
	ReferenceID string
	Status      LinkStatus
	PaymentID   string
	PaidAt      time.Time
}

// Gateway is the hosted-payment-link collaborator.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error)
	FetchPaymentLink(ctx context.Context, referenceID string) (LinkDetails, error)
	// CancelPaymentLink closes an unpaid link. It fails once the link is paid.
	CancelPaymentLink(ctx context.Context, referenceID string) error
}
