package repo_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repo"
)

// newTestDB starts a throwaway Postgres, applies the migrations and returns
// a connection to it.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	// Re-running is a no-op.
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func seedUser(t *testing.T, users repo.UserRepo) *domain.User {
	t.Helper()
	u, err := users.UpsertOTP(context.Background(), "buyer@example.com", "123456", time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	return u
}

func newOrder(userID uuid.UUID) *domain.Order {
	items := []domain.OrderItem{
		{ProductID: "p1", Name: "Mug", Image: "https://img.test/mug.png", Price: decimal.RequireFromString("149.99"), Quantity: 1},
		{ProductID: "p2", Name: "Tee", Price: decimal.RequireFromString("25.00"), Quantity: 2},
	}
	totals := domain.ComputeTotals(items, decimal.NewFromInt(10))
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		OrderID: domain.NewOrderID(now),
		UserID:  userID,
		Items:   items,
		ShippingAddress: domain.ShippingAddress{
			Name: "Asha Rao", Phone: "9876543210", Email: "buyer@example.com",
			Address: "12 MG Road", City: "Bengaluru", Pincode: "560001",
		},
		CouponCode:      "SAVE10",
		DiscountPercent: totals.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		Subtotal:        totals.Subtotal,
		TotalAmount:     totals.Total,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPostgresRepositories(t *testing.T) {
	db := newTestDB(t)
	users := repo.NewUserRepo(db)
	orders := repo.NewOrderRepo(db)
	ctx := context.Background()

	t.Run("user otp lifecycle", func(t *testing.T) {
		u := seedUser(t, users)
		assert.Equal(t, "123456", u.OTPCode)
		require.NotNil(t, u.OTPExpiresAt)

		again, err := users.UpsertOTP(ctx, "buyer@example.com", "654321", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)
		assert.Equal(t, "654321", again.OTPCode)

		require.NoError(t, users.ClearOTP(ctx, u.ID))
		cleared, err := users.FindByEmail(ctx, "buyer@example.com")
		require.NoError(t, err)
		assert.Empty(t, cleared.OTPCode)
		assert.Nil(t, cleared.OTPExpiresAt)

		require.NoError(t, users.UpdateProfile(ctx, u.ID, domain.Profile{Name: "Asha", City: "Pune"}))
		got, err := users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pune", got.City)

		_, err = users.FindByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("order round trip", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		require.NoError(t, orders.CreateOrder(ctx, o))

		got, err := orders.FindByID(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, o.Items[0].Name, got.Items[0].Name)
		assert.Equal(t, o.Items[0].Image, got.Items[0].Image)
		assert.True(t, o.Items[0].Price.Equal(got.Items[0].Price))
		assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
		assert.True(t, o.TotalAmount.Equal(got.TotalAmount), got.TotalAmount.String())
		assert.True(t, got.TotalAmount.Equal(got.Subtotal.Sub(got.DiscountAmount)))
		assert.Equal(t, "SAVE10", got.CouponCode)
		assert.Empty(t, got.GatewayReferenceID)
		assert.Nil(t, got.PaidAt)

		mine, err := orders.ListByUser(ctx, u.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, mine)

		require.NoError(t, orders.DeleteOrder(ctx, o.OrderID))
		_, err = orders.FindByID(ctx, o.OrderID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("totals constraint", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		o.TotalAmount = o.Subtotal.Add(decimal.NewFromInt(1))
		assert.Error(t, orders.CreateOrder(ctx, o))
	})

	t.Run("gateway reference is unique", func(t *testing.T) {
		u := seedUser(t, users)
		a, b := newOrder(u.ID), newOrder(u.ID)
		require.NoError(t, orders.CreateOrder(ctx, a))
		require.NoError(t, orders.CreateOrder(ctx, b))

		require.NoError(t, orders.AttachPaymentLink(ctx, a.OrderID, "plink_unique", "https://pay.test/a"))
		err := orders.AttachPaymentLink(ctx, b.OrderID, "plink_unique", "https://pay.test/b")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("confirm payment is idempotent under concurrency", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		require.NoError(t, orders.CreateOrder(ctx, o))
		require.NoError(t, orders.AttachPaymentLink(ctx, o.OrderID, "plink_confirm", "https://pay.test/c"))

		paidAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		const deliveries = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for range deliveries {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, ok, err := orders.ConfirmPayment(ctx, "plink_confirm", "pay_1", paidAt)
				assert.NoError(t, err)
				assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
				if ok {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, applied)

		// A replay with a different payment id changes nothing.
		got, ok, err := orders.ConfirmPayment(ctx, "plink_confirm", "pay_2", paidAt.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "pay_1", got.GatewayPaymentID)
		require.NotNil(t, got.PaidAt)
		assert.True(t, paidAt.Equal(*got.PaidAt))

		_, _, err = orders.ConfirmPayment(ctx, "plink_missing", "pay_1", paidAt)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("status update is conditional", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		require.NoError(t, orders.CreateOrder(ctx, o))

		updated, err := orders.UpdateStatus(ctx, o.OrderID, domain.OrderPending, domain.OrderPackaging)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPackaging, updated.Status)

		_, err = orders.UpdateStatus(ctx, o.OrderID, domain.OrderPending, domain.OrderShipped)
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = orders.UpdateStatus(ctx, "ORD-MISSING", domain.OrderPending, domain.OrderShipped)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		tracked, err := orders.SetTrackingLink(ctx, o.OrderID, "https://track.test/1")
		require.NoError(t, err)
		assert.Equal(t, "https://track.test/1", tracked.TrackingLink)
	})

	t.Run("stuck orders and cancellation", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		o.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		require.NoError(t, orders.CreateOrder(ctx, o))

		stuck, err := orders.FindStuckOrders(ctx, time.Now().Add(-time.Hour), repo.StuckCursor{}, 100)
		require.NoError(t, err)
		ids := make([]string, 0, len(stuck))
		for _, s := range stuck {
			ids = append(ids, s.OrderID)
		}
		assert.Contains(t, ids, o.OrderID)

		ok, err := orders.CancelUnpaid(ctx, o.OrderID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = orders.CancelUnpaid(ctx, o.OrderID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := orders.FindByID(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, got.Status)
		assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	})

	t.Run("stuck orders page by cursor", func(t *testing.T) {
		u := seedUser(t, users)
		created := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Microsecond)
		want := map[string]bool{}
		for i := 0; i < 3; i++ {
			o := newOrder(u.ID)
			o.CreatedAt = created
			require.NoError(t, orders.CreateOrder(ctx, o))
			want[o.OrderID] = true
		}

		seen := map[string]bool{}
		var cursor repo.StuckCursor
		for {
			page, err := orders.FindStuckOrders(ctx, time.Now().Add(-time.Hour), cursor, 2)
			require.NoError(t, err)
			for _, o := range page {
				assert.False(t, seen[o.OrderID], "order %s returned twice", o.OrderID)
				seen[o.OrderID] = true
			}
			if len(page) < 2 {
				break
			}
			cursor = repo.CursorAfter(page[len(page)-1])
		}
		for id := range want {
			assert.True(t, seen[id], "order %s never returned", id)
		}
	})

	t.Run("mark paid", func(t *testing.T) {
		u := seedUser(t, users)
		o := newOrder(u.ID)
		require.NoError(t, orders.CreateOrder(ctx, o))

		paid, err := orders.MarkPaid(ctx, o.OrderID, "bypass_"+o.OrderID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPaid, paid.Status)

		again, err := orders.MarkPaid(ctx, o.OrderID, "other", time.Now())
		require.NoError(t, err)
		assert.Equal(t, "bypass_"+o.OrderID, again.GatewayPaymentID)
	})
}
