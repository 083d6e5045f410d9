package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com/v1"

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

type razorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewRazorpayGateway returns a Gateway backed by the Razorpay Payment Links API.
func NewRazorpayGateway(cfg RazorpayConfig) Gateway {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &razorpayGateway{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: timeout},
	}
}

type razorpayCustomer struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type razorpayNotify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type razorpayLinkRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	ReferenceID    string            `json:"reference_id"`
	Description    string            `json:"description,omitempty"`
	Customer       razorpayCustomer  `json:"customer"`
	Notify         razorpayNotify    `json:"notify"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	CallbackMethod string            `json:"callback_method,omitempty"`
	ExpireBy       int64             `json:"expire_by,omitempty"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type razorpayLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
	Payments []struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	} `json:"payments"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *razorpayGateway) CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error) {
	body := razorpayLinkRequest{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		ReferenceID: req.OrderID,
		Description: req.Description,
		Customer: razorpayCustomer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Contact: req.Customer.Phone,
		},
		CallbackURL:    req.CallbackURL,
		CallbackMethod: "get",
		Notes:          map[string]string{"order_id": req.OrderID},
	}
	if req.CallbackURL == "" {
		body.CallbackMethod = ""
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpireBy = req.ExpiresAt.Unix()
	}

	var link razorpayLink
	if err := g.do(ctx, http.MethodPost, "/payment_links", body, &link); err != nil {
		return Link{}, err
	}
	if link.ID == "" || link.ShortURL == "" {
		return Link{}, fmt.Errorf("razorpay: incomplete payment link response")
	}
	return Link{ReferenceID: link.ID, URL: link.ShortURL}, nil
}

func (g *razorpayGateway) FetchPaymentLink(ctx context.Context, referenceID string) (LinkDetails, error) {
	var link razorpayLink
	if err := g.do(ctx, http.MethodGet, "/payment_links/"+referenceID, nil, &link); err != nil {
		return LinkDetails{}, err
	}

	details := LinkDetails{ReferenceID: link.ID, Status: LinkStatus(link.Status)}
	for _, p := range link.Payments {
		if p.Status == "captured" || details.PaymentID == "" {
			details.PaymentID = p.PaymentID
			if p.CreatedAt > 0 {
				details.PaidAt = time.Unix(p.CreatedAt, 0).UTC()
			}
		}
	}
	return details, nil
}

func (g *razorpayGateway) CancelPaymentLink(ctx context.Context, referenceID string) error {
	var link razorpayLink
	if err := g.do(ctx, http.MethodPost, "/payment_links/"+referenceID+"/cancel", struct{}{}, &link); err != nil {
		return err
	}
	if LinkStatus(link.Status) != LinkCancelled {
		return fmt.Errorf("razorpay: cancel %s left link %s", referenceID, link.Status)
	}
	return nil
}

func (g *razorpayGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("razorpay: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrLinkNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr razorpayError
		_ = json.Unmarshal(raw, &apiErr)
		return fmt.Errorf("razorpay: %s %s: status %d: %s %s",
			method, path, resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("razorpay: decode response: %w", err)
	}
	return nil
}
