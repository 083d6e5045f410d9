package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// MockGateway is an in-process Gateway for local runs and tests. It hands out
// links under BaseURL and keeps their state in memory.
type MockGateway struct {
	mu    sync.RWMutex
	links map[string]LinkDetails
	seq   int

	BaseURL string
	// FailureRate is the probability (0..1) that CreatePaymentLink fails.
	FailureRate float64
	// Err, when set, is returned by every CreatePaymentLink call.
	Err error
	// Requests records every accepted or rejected create request.
	Requests []LinkRequest
}

func NewMockGateway(baseURL string) *MockGateway {
	if baseURL == "" {
		baseURL = "http://localhost:8080/mock-pay"
	}
	return &MockGateway{links: make(map[string]LinkDetails), BaseURL: baseURL}
}

func (g *MockGateway) CreatePaymentLink(_ context.Context, req LinkRequest) (Link, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return Link{}, g.Err
	}
	if g.FailureRate > 0 && rand.Float64() < g.FailureRate {
		return Link{}, errors.New("mock gateway: connection timeout")
	}

	g.seq++
	id := fmt.Sprintf("plink_mock_%06d", g.seq)
	g.links[id] = LinkDetails{ReferenceID: id, Status: LinkCreated}
	return Link{ReferenceID: id, URL: g.BaseURL + "/" + id}, nil
}

func (g *MockGateway) FetchPaymentLink(_ context.Context, referenceID string) (LinkDetails, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	link, ok := g.links[referenceID]
	if !ok {
		return LinkDetails{}, ErrLinkNotFound
	}
	return link, nil
}

// Pay marks a link paid, as if the buyer completed checkout.
func (g *MockGateway) Pay(referenceID, paymentID string, at time.Time) error {
	return g.setStatus(referenceID, LinkDetails{
		ReferenceID: referenceID,
		Status:      LinkPaid,
		PaymentID:   paymentID,
		PaidAt:      at.UTC(),
	})
}

var errMockLinkPaid = errors.New("mock gateway: payment link already paid")

func (g *MockGateway) CancelPaymentLink(_ context.Context, referenceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	link, ok := g.links[referenceID]
	switch {
	case !ok:
		return ErrLinkNotFound
	case link.Status == LinkPaid:
		return errMockLinkPaid
	}
	g.links[referenceID] = LinkDetails{ReferenceID: referenceID, Status: LinkCancelled}
	return nil
}

// Expire closes a link without payment.
func (g *MockGateway) Expire(referenceID string) error {
	return g.setStatus(referenceID, LinkDetails{ReferenceID: referenceID, Status: LinkExpired})
}

func (g *MockGateway) setStatus(referenceID string, details LinkDetails) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.links[referenceID]; !ok {
		return ErrLinkNotFound
	}
	g.links[referenceID] = details
	return nil
}
