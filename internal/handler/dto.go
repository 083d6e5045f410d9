package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type sendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type verifyOTPResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

type profileResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

type itemRequest struct {
	// The storefront cart keys products by "_id".
	ID        string          `json:"_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name" binding:"required"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
}

type addressPayload struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Address string `json:"address" binding:"required"`
	City    string `json:"city" binding:"required"`
	Pincode string `json:"pincode" binding:"required"`
}

type createOrderRequest struct {
	Items           []itemRequest  `json:"items" binding:"required,min=1,dive"`
	ShippingAddress addressPayload `json:"shipping_address"`
	CouponCode      string         `json:"coupon_code"`
}

type createOrderResponse struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

type applyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

type couponResponse struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type addTrackingRequest struct {
	TrackingLink string `json:"tracking_link" binding:"required"`
}

type itemResponse struct {
	ProductID string  `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type orderResponse struct {
	OrderID         string         `json:"order_id"`
	UserID          string         `json:"user_id"`
	Items           []itemResponse `json:"items"`
	ShippingAddress addressPayload `json:"shipping_address"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	DiscountPercent float64        `json:"discount_percent"`
	DiscountAmount  float64        `json:"discount_amount"`
	Subtotal        float64        `json:"subtotal"`
	TotalAmount     float64        `json:"total_amount"`
	Status          string         `json:"status"`
	PaymentStatus   string         `json:"payment_status"`
	PaymentURL      string         `json:"payment_url,omitempty"`
	TrackingLink    string         `json:"tracking_link,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (r createOrderRequest) items() []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		id := it.ProductID
		if id == "" {
			id = it.ID
		}
		out = append(out, domain.OrderItem{
			ProductID: id,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func (a addressPayload) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress(a)
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     money(it.Price),
			Quantity:  it.Quantity,
		})
	}
	return orderResponse{
		OrderID:         o.OrderID,
		UserID:          o.UserID.String(),
		Items:           items,
		ShippingAddress: addressPayload(o.ShippingAddress),
		CouponCode:      o.CouponCode,
		DiscountPercent: money(o.DiscountPercent),
		DiscountAmount:  money(o.DiscountAmount),
		Subtotal:        money(o.Subtotal),
		TotalAmount:     money(o.TotalAmount),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentURL:      o.PaymentURL,
		TrackingLink:    o.TrackingLink,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}
