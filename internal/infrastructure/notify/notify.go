package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"storefront/internal/domain"
)

// Notifier delivers transactional messages to buyers.
type Notifier interface {
	SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
	SendStatusUpdate(ctx context.Context, order domain.Order) error
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Renderer turns workflow events into messages.
type Renderer struct {
	Currency string
}

func (r Renderer) LoginCode(email, code string, expiresIn time.Duration) (Message, error) {
	body, err := render("login_code.html", map[string]any{
		"Code":      code,
		"ExpiresIn": fmt.Sprintf("%d minutes", int(expiresIn.Minutes())),
	})
	return Message{To: email, Subject: "Your login code", HTML: body}, err
}

func (r Renderer) OrderConfirmation(order domain.Order) (Message, error) {
	body, err := render("order_confirmation.html", map[string]any{
		"Order":    order,
		"Currency": r.Currency,
	})
	return Message{
		To:      order.ShippingAddress.Email,
		Subject: fmt.Sprintf("Order %s confirmed", order.OrderID),
		HTML:    body,
	}, err
}

func (r Renderer) StatusUpdate(order domain.Order) (Message, error) {
	body, err := render("status_update.html", map[string]any{"Order": order})
	return Message{
		To:      order.ShippingAddress.Email,
		Subject: fmt.Sprintf("Order %s is %s", order.OrderID, order.Status),
		HTML:    body,
	}, err
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
