package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/observability"
	"storefront/internal/repo/memrepo"
	"storefront/internal/service"
	"storefront/internal/worker"
)

type simulateOptions struct {
	orders      int
	failureRate float64
	lostWebhook float64
	abandon     float64
}

// simulateCmd runs the checkout saga end to end against in-memory stores and
// the mock gateway: some payment links fail, some payments never get their
// webhook, some buyers walk away. A reconciliation pass then settles what the
// webhook missed.
func simulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate checkouts with gateway failures and lost webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := observability.NewLogger("warn")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runSimulation(cmd.Context(), cmd, opts, logger)
		},
	}
	cmd.Flags().IntVarP(&opts.orders, "orders", "n", 20, "number of checkouts")
	cmd.Flags().Float64Var(&opts.failureRate, "gateway-failure-rate", 0.2, "probability that creating a payment link fails")
	cmd.Flags().Float64Var(&opts.lostWebhook, "lost-webhook-rate", 0.3, "probability that a completed payment's webhook is never delivered")
	cmd.Flags().Float64Var(&opts.abandon, "abandon-rate", 0.2, "probability that the buyer never pays")
	return cmd
}

func runSimulation(ctx context.Context, cmd *cobra.Command, opts simulateOptions, logger *zap.Logger) error {
	const secret = "simulation"
	out := cmd.OutOrStdout()

	orders := memrepo.NewOrders()
	users := memrepo.NewUsers()
	coupons := memrepo.NewCoupons(domain.Coupon{Code: "SAVE10", Discount: decimal.NewFromInt(10)})
	gateway := payment.NewMockGateway("http://localhost:8080/mock-pay")
	gateway.FailureRate = opts.failureRate
	notifier := &notify.Recorder{}

	buyer := domain.User{ID: uuid.New(), Email: "buyer@example.com"}
	users.Put(buyer)

	orderSvc := service.NewOrderService(orders, users, coupons, gateway, notifier, service.OrderConfig{
		Currency:    "INR",
		CallbackURL: "http://localhost:8080/payment/success",
	}, logger, nil)
	webhooks := service.NewWebhookService(orders, notifier, secret, logger, nil)

	fmt.Fprintf(out, "--- simulating %d checkouts ---\n", opts.orders)
	var created, linkFailed, webhooked, lost, abandoned int
	for i := range opts.orders {
		coupon := ""
		if i%3 == 0 {
			coupon = "save10"
		}
		res, err := orderSvc.CreateOrder(ctx, buyer.ID, service.CreateOrderInput{
			Items: []domain.OrderItem{{
				ProductID: fmt.Sprintf("sku-%03d", i),
				Name:      "Ceramic mug",
				Price:     decimal.NewFromInt(int64(100 + 10*i)),
				Quantity:  1 + i%2,
			}},
			ShippingAddress: domain.ShippingAddress{
				Name: "Sim Buyer", Phone: "9000000000", Email: buyer.Email,
				Address: "1 Test Street", City: "Pune", Pincode: "411001",
			},
			CouponCode: coupon,
		})
		if err != nil {
			linkFailed++
			fmt.Fprintf(out, "[%02d] checkout failed: %v\n", i+1, err)
			continue
		}
		created++

		ref := res.Order.GatewayReferenceID
		switch r := rand.Float64(); {
		case r < opts.abandon:
			abandoned++
			_ = gateway.Expire(ref)
			fmt.Fprintf(out, "[%02d] %s abandoned\n", i+1, res.OrderID)
		case r < opts.abandon+(1-opts.abandon)*opts.lostWebhook:
			lost++
			_ = gateway.Pay(ref, "pay_sim_"+uuid.NewString()[:8], time.Now())
			fmt.Fprintf(out, "[%02d] %s paid, webhook lost\n", i+1, res.OrderID)
		default:
			webhooked++
			body := simulatedWebhook(ref)
			outcome, err := webhooks.HandleEvent(ctx, body, payment.Sign(body, secret))
			if err != nil {
				return fmt.Errorf("webhook: %w", err)
			}
			_ = gateway.Pay(ref, "pay_sim", time.Now())
			fmt.Fprintf(out, "[%02d] %s paid, webhook %s\n", i+1, res.OrderID, outcome)
		}
	}

	before := countByStatus(ctx, orders)
	rw := worker.NewReconciliationWorker(orders, gateway, webhooks, worker.Options{}, logger, nil)
	report, err := rw.RunOnce(ctx)
	if err != nil {
		return err
	}
	after := countByStatus(ctx, orders)

	fmt.Fprintln(out, "--- summary ---")
	fmt.Fprintf(out, "created=%d link_failed=%d webhook=%d lost_webhook=%d abandoned=%d\n",
		created, linkFailed, webhooked, lost, abandoned)
	fmt.Fprintf(out, "before reconcile: %v\n", before)
	fmt.Fprintf(out, "reconcile: confirmed=%d cancelled=%d skipped=%d\n", report.Confirmed, report.Cancelled, report.Skipped)
	fmt.Fprintf(out, "after reconcile:  %v\n", after)
	fmt.Fprintf(out, "confirmation emails: %d\n", notifier.Count("order_confirmation"))
	return nil
}

func simulatedWebhook(ref string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": payment.EventPaymentLinkPaid,
		"payload": map[string]any{
			"payment_link": map[string]any{"entity": map[string]any{"id": ref, "status": "paid"}},
			"payment":      map[string]any{"entity": map[string]any{"id": "pay_sim", "created_at": time.Now().Unix()}},
		},
	})
	return body
}

func countByStatus(ctx context.Context, orders *memrepo.Orders) map[domain.OrderStatus]int {
	all, _ := orders.ListAll(ctx)
	counts := make(map[domain.OrderStatus]int)
	for _, o := range all {
		counts[o.Status]++
	}
	return counts
}
