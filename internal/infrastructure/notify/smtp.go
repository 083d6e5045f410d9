package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"storefront/internal/domain"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	Currency string
	Timeout  time.Duration
}

type smtpNotifier struct {
	cfg      SMTPConfig
	renderer Renderer
}

// NewSMTPNotifier sends mail through an authenticated SMTP relay. Port 465
// uses implicit TLS, any other port upgrades with STARTTLS when offered.
func NewSMTPNotifier(cfg SMTPConfig) Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &smtpNotifier{cfg: cfg, renderer: Renderer{Currency: cfg.Currency}}
}

func (n *smtpNotifier) SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error {
	msg, err := n.renderer.LoginCode(email, code, expiresIn)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func (n *smtpNotifier) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	msg, err := n.renderer.OrderConfirmation(order)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func (n *smtpNotifier) SendStatusUpdate(ctx context.Context, order domain.Order) error {
	msg, err := n.renderer.StatusUpdate(order)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func (n *smtpNotifier) send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mail: no recipient for %q", msg.Subject)
	}
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)
	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if n.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: n.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && n.cfg.Port != "465" {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if n.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := client.Mail(n.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(n.buildRaw(msg)); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (n *smtpNotifier) buildRaw(msg Message) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", n.cfg.FromName, n.cfg.From))
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
