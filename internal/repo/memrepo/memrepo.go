// Package memrepo provides in-memory implementations of the repository
// interfaces for tests and local runs without backing stores.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/repo"
)

var (
	_ repo.OrderRepo    = (*Orders)(nil)
	_ repo.UserRepo     = (*Users)(nil)
	_ repo.CouponRepo   = (*Coupons)(nil)
	_ repo.CodeThrottle = (*Throttle)(nil)
)

// Orders is a concurrency-safe OrderRepo. Fail* fields inject errors.
type Orders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	now    func() time.Time

	FailCreate error
	FailDelete error
	FailAttach error
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[string]domain.Order), now: time.Now}
}

func (r *Orders) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	if _, ok := r.orders[order.OrderID]; ok {
		return domain.ErrConflict
	}
	r.orders[order.OrderID] = cloneOrder(*order)
	return nil
}

func (r *Orders) DeleteOrder(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return r.FailDelete
	}
	delete(r.orders, orderID)
	return nil
}

func (r *Orders) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ptr(cloneOrder(o)), nil
}

func (r *Orders) FindByGatewayReference(_ context.Context, referenceID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byReference(referenceID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ptr(cloneOrder(o)), nil
}

func (r *Orders) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (r *Orders) ListAll(context.Context) ([]domain.Order, error) {
	return r.filter(func(domain.Order) bool { return true }), nil
}

func (r *Orders) AttachPaymentLink(_ context.Context, orderID, referenceID, paymentURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAttach != nil {
		return r.FailAttach
	}
	o, ok := r.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if other, ok := r.byReference(referenceID); ok && other.OrderID != orderID {
		return domain.ErrConflict
	}
	o.GatewayReferenceID = referenceID
	o.PaymentURL = paymentURL
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return nil
}

func (r *Orders) ConfirmPayment(_ context.Context, referenceID, paymentID string, paidAt time.Time) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byReference(referenceID)
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return ptr(cloneOrder(o)), false, nil
	}
	o = r.markPaid(o, paymentID, paidAt)
	return ptr(cloneOrder(o)), true, nil
}

func (r *Orders) MarkPaid(_ context.Context, orderID, paymentID string, paidAt time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.PaymentStatus != domain.PaymentPaid {
		o = r.markPaid(o, paymentID, paidAt)
	}
	return ptr(cloneOrder(o)), nil
}

func (r *Orders) UpdateStatus(_ context.Context, orderID string, from, to domain.OrderStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != from {
		return nil, fmt.Errorf("order %s is no longer %s: %w", orderID, from, domain.ErrConflict)
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return ptr(cloneOrder(o)), nil
}

func (r *Orders) SetTrackingLink(_ context.Context, orderID, link string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.TrackingLink = link
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return ptr(cloneOrder(o)), nil
}

func (r *Orders) FindStuckOrders(_ context.Context, createdBefore time.Time, after repo.StuckCursor, limit int) ([]domain.Order, error) {
	out := r.filter(func(o domain.Order) bool {
		return o.Status == domain.OrderPending &&
			o.PaymentStatus == domain.PaymentPending &&
			o.CreatedAt.Before(createdBefore) &&
			stuckAfter(o, after)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stuckAfter(o domain.Order, c repo.StuckCursor) bool {
	if o.CreatedAt.Equal(c.CreatedAt) {
		return o.OrderID > c.OrderID
	}
	return o.CreatedAt.After(c.CreatedAt)
}

func (r *Orders) CancelUnpaid(_ context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != domain.OrderPending || o.PaymentStatus != domain.PaymentPending {
		return false, nil
	}
	o.Status = domain.OrderCancelled
	o.PaymentStatus = domain.PaymentFailed
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return true, nil
}

// Put stores order as-is, bypassing validation. Test setup only.
func (r *Orders) Put(order domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = cloneOrder(order)
}

func (r *Orders) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *Orders) markPaid(o domain.Order, paymentID string, paidAt time.Time) domain.Order {
	at := paidAt.UTC()
	o.PaymentStatus = domain.PaymentPaid
	o.Status = domain.OrderPaid
	o.GatewayPaymentID = paymentID
	o.PaidAt = &at
	o.UpdatedAt = r.now()
	r.orders[o.OrderID] = o
	return o
}

func (r *Orders) byReference(referenceID string) (domain.Order, bool) {
	if referenceID == "" {
		return domain.Order{}, false
	}
	for _, o := range r.orders {
		if o.GatewayReferenceID == referenceID {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (r *Orders) filter(keep func(domain.Order) bool) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	return o
}

func ptr[T any](v T) *T { return &v }

// Users is a concurrency-safe UserRepo.
type Users struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User

	FailUpsert  error
	FailClear   error
	FailProfile error
}

func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]domain.User)}
}

func (r *Users) UpsertOTP(_ context.Context, email, code string, expiresAt time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpsert != nil {
		return nil, r.FailUpsert
	}
	at := expiresAt.UTC()
	u, ok := r.byEmail(email)
	if !ok {
		u = domain.User{ID: uuid.New(), Email: email, CreatedAt: time.Now().UTC()}
	}
	u.OTPCode = code
	u.OTPExpiresAt = &at
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = u
	return ptr(u), nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail(email)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ptr(u), nil
}

func (r *Users) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ptr(u), nil
}

func (r *Users) ClearOTP(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailClear != nil {
		return r.FailClear
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.OTPCode = ""
	u.OTPExpiresAt = nil
	r.users[id] = u
	return nil
}

func (r *Users) UpdateProfile(_ context.Context, id uuid.UUID, p domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailProfile != nil {
		return r.FailProfile
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Name, u.Phone, u.Address, u.City, u.Pincode = p.Name, p.Phone, p.Address, p.City, p.Pincode
	r.users[id] = u
	return nil
}

// Put stores user as-is. Test setup only.
func (r *Users) Put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *Users) byEmail(email string) (domain.User, bool) {
	for _, u := range r.users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

// Coupons is a fixed coupon table keyed by upper-cased code.
type Coupons struct {
	mu      sync.RWMutex
	coupons map[string]domain.Coupon
}

func NewCoupons(coupons ...domain.Coupon) *Coupons {
	c := &Coupons{coupons: make(map[string]domain.Coupon)}
	for _, cp := range coupons {
		cp.Code = domain.NormalizeCouponCode(cp.Code)
		c.coupons[cp.Code] = cp
	}
	return c
}

func (c *Coupons) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ptr(cp), nil
}

// Throttle is a process-local CodeThrottle.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    map[string]time.Time
	now      func() time.Time
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{cooldown: cooldown, until: make(map[string]time.Time), now: time.Now}
}

func (t *Throttle) Allow(_ context.Context, email string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if until, ok := t.until[email]; ok && now.Before(until) {
		return false, nil
	}
	t.until[email] = now.Add(t.cooldown)
	return true, nil
}

func (t *Throttle) Release(_ context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.until, email)
	return nil
}
