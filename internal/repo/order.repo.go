package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	DeleteOrder(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)
	FindByGatewayReference(ctx context.Context, referenceID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	AttachPaymentLink(ctx context.Context, orderID, referenceID, paymentURL string) error
	// ConfirmPayment marks the order holding referenceID as paid in a single
	// conditional write. applied is false when the order was already paid; an
	// unknown reference yields domain.ErrNotFound.
	ConfirmPayment(ctx context.Context, referenceID, paymentID string, paidAt time.Time) (order *domain.Order, applied bool, err error)
	// MarkPaid is ConfirmPayment keyed by order id, used when no gateway is involved.
	MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*domain.Order, error)
	// UpdateStatus moves the order from one status to another and fails with
	// domain.ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (*domain.Order, error)
	SetTrackingLink(ctx context.Context, orderID, link string) (*domain.Order, error)
	// FindStuckOrders returns unpaid Pending orders created before the cutoff,
	// oldest first, starting after the given cursor.
	FindStuckOrders(ctx context.Context, createdBefore time.Time, after StuckCursor, limit int) ([]domain.Order, error)
	// CancelUnpaid cancels a still-unpaid Pending order; it reports false when
	// the order moved on in the meantime.
	CancelUnpaid(ctx context.Context, orderID string) (bool, error)
}

// StuckCursor is the (created_at, order_id) position a FindStuckOrders page
// ended on. The zero value starts from the oldest order.
type StuckCursor struct {
	CreatedAt time.Time
	OrderID   string
}

// CursorAfter positions a cursor past order.
func CursorAfter(order domain.Order) StuckCursor {
	return StuckCursor{CreatedAt: order.CreatedAt, OrderID: order.OrderID}
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `order_id, user_id, items, shipping_address, COALESCE(coupon_code, ''),
	discount_percent, discount_amount, subtotal, total_amount, status, payment_status,
	COALESCE(gateway_reference_id, ''), COALESCE(payment_url, ''), COALESCE(gateway_payment_id, ''),
	paid_at, COALESCE(tracking_link, ''), created_at, updated_at`

// storedItem and storedAddress are the JSONB shapes of the embedded documents.
type storedItem struct {
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type storedAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	items := make([]storedItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = storedItem(it)
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}
	addrJSON, err := json.Marshal(storedAddress(order.ShippingAddress))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			order_id, user_id, items, shipping_address, coupon_code,
			discount_percent, discount_amount, subtotal, total_amount,
			status, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)`,
		order.OrderID, order.UserID, itemsJSON, addrJSON, order.CouponCode,
		order.DiscountPercent, order.DiscountAmount, order.Subtotal, order.TotalAmount,
		order.Status, order.PaymentStatus, order.CreatedAt, order.UpdatedAt,
	)
	return translate(err)
}

func (r *orderRepo) DeleteOrder(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE order_id = $1", orderID)
	return err
}

func (r *orderRepo) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = $1", orderID)
	return scanOrder(row)
}

func (r *orderRepo) FindByGatewayReference(ctx context.Context, referenceID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE gateway_reference_id = $1", referenceID)
	return scanOrder(row)
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (r *orderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
}

func (r *orderRepo) AttachPaymentLink(ctx context.Context, orderID, referenceID, paymentURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET gateway_reference_id = $2, payment_url = $3, updated_at = now()
		WHERE order_id = $1`,
		orderID, referenceID, paymentURL,
	)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (r *orderRepo) ConfirmPayment(ctx context.Context, referenceID, paymentID string, paidAt time.Time) (*domain.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, gateway_payment_id = $4, paid_at = $5, updated_at = now()
		WHERE gateway_reference_id = $1 AND payment_status <> $2
		RETURNING `+orderColumns,
		referenceID, domain.PaymentPaid, domain.OrderPaid, paymentID, paidAt.UTC(),
	)
	order, err := scanOrder(row)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	// Nothing updated: either the reference is unknown or the order is
	// already paid.
	existing, err := r.FindByGatewayReference(ctx, referenceID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, gateway_payment_id = $4, paid_at = $5, updated_at = now()
		WHERE order_id = $1 AND payment_status <> $2
		RETURNING `+orderColumns,
		orderID, domain.PaymentPaid, domain.OrderPaid, paymentID, paidAt.UTC(),
	)
	order, err := scanOrder(row)
	if errors.Is(err, domain.ErrNotFound) {
		return r.FindByID(ctx, orderID)
	}
	return order, err
}

func (r *orderRepo) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE order_id = $1 AND status = $2
		RETURNING `+orderColumns,
		orderID, from, to,
	)
	order, err := scanOrder(row)
	if errors.Is(err, domain.ErrNotFound) {
		if _, findErr := r.FindByID(ctx, orderID); findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("order %s is no longer %s: %w", orderID, from, domain.ErrConflict)
	}
	return order, err
}

func (r *orderRepo) SetTrackingLink(ctx context.Context, orderID, link string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET tracking_link = $2, updated_at = now()
		WHERE order_id = $1
		RETURNING `+orderColumns,
		orderID, link,
	)
	return scanOrder(row)
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, createdBefore time.Time, after StuckCursor, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND payment_status = $2 AND created_at < $3
			AND (created_at, order_id) > ($4, $5)
		ORDER BY created_at, order_id
		LIMIT $6`,
		domain.OrderPending, domain.PaymentPending, createdBefore.UTC(),
		after.CreatedAt.UTC(), after.OrderID, limit,
	)
}

func (r *orderRepo) CancelUnpaid(ctx context.Context, orderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE order_id = $1 AND status = $4 AND payment_status = $5`,
		orderID, domain.OrderCancelled, domain.PaymentFailed, domain.OrderPending, domain.PaymentPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o         domain.Order
		itemsJSON []byte
		addrJSON  []byte
		paidAt    sql.NullTime
	)
	err := row.Scan(
		&o.OrderID,
		&o.UserID,
		&itemsJSON,
		&addrJSON,
		&o.CouponCode,
		&o.DiscountPercent,
		&o.DiscountAmount,
		&o.Subtotal,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentStatus,
		&o.GatewayReferenceID,
		&o.PaymentURL,
		&o.GatewayPaymentID,
		&paidAt,
		&o.TrackingLink,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []storedItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", o.OrderID, err)
	}
	o.Items = make([]domain.OrderItem, len(items))
	for i, it := range items {
		o.Items[i] = domain.OrderItem(it)
	}

	var addr storedAddress
	if err := json.Unmarshal(addrJSON, &addr); err != nil {
		return nil, fmt.Errorf("decode shipping address of %s: %w", o.OrderID, err)
	}
	o.ShippingAddress = domain.ShippingAddress(addr)

	if paidAt.Valid {
		t := paidAt.Time.UTC()
		o.PaidAt = &t
	}
	return &o, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
