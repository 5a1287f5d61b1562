package service

import (
	"context"
	"testing"
	"time"

	auditModel "storefront/internal/domain/audit/model"
	inventoryModel "storefront/internal/domain/inventory/model"
	inventoryService "storefront/internal/domain/inventory/service"
	"storefront/internal/domain/order/model"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/notify"
	"storefront/internal/pkg/testutil"
	"storefront/pkg/apperr"
	"storefront/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 4, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc          *orderService
	orders       *memoryOrders
	products     *memoryProducts
	reservations *memoryReservations
	ledger       *fakeLedger
	audit        *testutil.RecordingAudit
	notifier     *testutil.RecordingDispatcher
}

func product(id, name, price string, stock int) inventoryModel.Product {
	p := inventoryModel.Product{
		Name:        name,
		SKU:         "SKU-" + id,
		PriceUSD:    decimal.RequireFromString(price),
		Stock:       stock,
		Status:      inventoryModel.ProductStatusPublished,
		ProductType: inventoryModel.ProductTypePhysical,
	}
	p.ID = id
	return p
}

func newFixture(t *testing.T, products []inventoryModel.Product, discounts ...model.DiscountRequest) *fixture {
	t.Helper()
	cfg := config.NewStaticProvider(&config.Config{Store: config.StoreConfig{
		MinOrderUSD:         decimal.NewFromInt(10),
		MaxOrderUSD:         decimal.NewFromInt(5000),
		ReservationTTL:      15 * time.Minute,
		ReviewReminderDelay: 72 * time.Hour,
	}})

	f := &fixture{
		orders:       newMemoryOrders(discounts...),
		products:     newMemoryProducts(products...),
		reservations: &memoryReservations{},
		ledger:       &fakeLedger{balances: map[string]decimal.Decimal{"user-1": decimal.NewFromInt(100)}},
		audit:        &testutil.RecordingAudit{},
		notifier:     &testutil.RecordingDispatcher{},
	}
	svc := NewOrderService(
		f.orders,
		inventoryService.NewStockService(f.products),
		inventoryService.NewReservationService(f.reservations, cfg, nil),
		f.ledger,
		&testutil.InlineTransactor{},
		f.audit,
		f.notifier,
		cfg,
		nil,
		zap.NewNop(),
	).(*orderService)
	svc.now = func() time.Time { return testNow }
	f.svc = svc
	return f
}

func walletInput(total string, items ...ItemInput) CreateOrderInput {
	return CreateOrderInput{
		UserID:         "user-1",
		Items:          items,
		Currency:       model.CurrencyUSD,
		TotalUSD:       decimal.RequireFromString(total),
		DeliveryMethod: model.DeliveryPickup,
		PaymentMethod:  model.PaymentWallet,
	}
}

func codeOf(err error) string {
	if e := apperr.As(err); e != nil {
		return e.Code
	}
	return ""
}

func TestCreateOrderWithWallet(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe molido", "25.00", 10)})

	order, err := f.svc.CreateOrder(context.Background(), walletInput("50.00", ItemInput{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-000001", order.OrderNumber)
	assert.Equal(t, model.StatusProcessing, order.Status)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.True(t, order.StockCommitted)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, testNow, *order.PaidAt)
	assert.True(t, decimal.NewFromInt(50).Equal(order.TotalUSD))

	assert.True(t, decimal.NewFromInt(50).Equal(f.ledger.balance("user-1")))
	assert.Equal(t, 8, f.products.stock("p1"))
	assert.Empty(t, f.reservations.all())
	assert.Equal(t, []notify.Kind{notify.KindOrderCreated}, f.notifier.Kinds())
}

func TestCreateOrderDeferredReservesStock(t *testing.T) {
	digital := product("p2", "Gift card", "10.00", 0)
	digital.ProductType = inventoryModel.ProductTypeDigital
	f := newFixture(t, []inventoryModel.Product{product("p1", "Harina", "5.00", 10), digital})

	in := walletInput("20.00", ItemInput{ProductID: "p1", Quantity: 2}, ItemInput{ProductID: "p2", Quantity: 1})
	in.PaymentMethod = model.PaymentPagoMovil

	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, model.PaymentPending, order.PaymentStatus)
	assert.False(t, order.StockCommitted)
	assert.Nil(t, order.PaidAt)
	assert.Equal(t, 10, f.products.stock("p1"))
	assert.True(t, decimal.NewFromInt(100).Equal(f.ledger.balance("user-1")))

	reservations := f.reservations.all()
	require.Len(t, reservations, 1)
	r := reservations[0]
	assert.Equal(t, "p1", r.ProductID)
	assert.Equal(t, order.ID, r.OrderID)
	assert.Equal(t, 2, r.Quantity)
	assert.Equal(t, 15*time.Minute, r.ExpiresAt.Sub(r.CreatedAt))
}

func TestCreateOrderBounds(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Chicle", "5.00", 10)})

	_, err := f.svc.CreateOrder(context.Background(), walletInput("5.00", ItemInput{ProductID: "p1", Quantity: 1}))
	assert.Equal(t, apperr.CodeOrderAmountOutOfBounds, codeOf(err))

	_, err = f.svc.CreateOrder(context.Background(), walletInput("6000.00", ItemInput{ProductID: "p1", Quantity: 1}))
	assert.Equal(t, apperr.CodeOrderAmountOutOfBounds, codeOf(err))

	assert.Equal(t, 0, f.orders.count())
	assert.Equal(t, 10, f.products.stock("p1"))
	assert.Empty(t, f.notifier.Sent())
}

func TestCreateOrderCollectsAllViolations(t *testing.T) {
	draft := product("p-draft", "Borrador", "10.00", 5)
	draft.Status = inventoryModel.ProductStatusDraft

	t.Run("Mixed problems report insufficient stock", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{product("p-low", "Aceite", "10.00", 1), draft})

		_, err := f.svc.CreateOrder(context.Background(), walletInput("50.00",
			ItemInput{ProductID: "p-missing", Quantity: 1},
			ItemInput{ProductID: "p-draft", Quantity: 1},
			ItemInput{ProductID: "p-low", Quantity: 3},
		))

		e := apperr.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperr.CodeInsufficientStock, e.Code)
		violations, ok := e.Details.([]inventoryModel.StockViolation)
		require.True(t, ok)
		require.Len(t, violations, 3)
		assert.Equal(t, inventoryModel.ReasonNotFound, violations[0].Reason)
		assert.Equal(t, inventoryModel.ReasonUnpublished, violations[1].Reason)
		assert.Equal(t, inventoryModel.ReasonInsufficientStock, violations[2].Reason)
		assert.Equal(t, 1, violations[2].Available)
		assert.Equal(t, 0, f.orders.count())
	})

	t.Run("Only availability problems", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{draft})

		_, err := f.svc.CreateOrder(context.Background(), walletInput("20.00",
			ItemInput{ProductID: "p-missing", Quantity: 1},
			ItemInput{ProductID: "p-draft", Quantity: 1},
		))
		assert.Equal(t, apperr.CodeProductUnavailable, codeOf(err))
	})

	t.Run("Repeated lines are checked together", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{product("p1", "Arroz", "5.00", 3)})

		_, err := f.svc.CreateOrder(context.Background(), walletInput("20.00",
			ItemInput{ProductID: "p1", Quantity: 2},
			ItemInput{ProductID: "p1", Quantity: 2},
		))
		assert.Equal(t, apperr.CodeInsufficientStock, codeOf(err))
	})
}

func TestCreateOrderCountsOtherUsersReservations(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Queso", "10.00", 5)})
	f.reservations.rows = []inventoryModel.StockReservation{
		{UserID: "user-2", ProductID: "p1", Quantity: 4, ExpiresAt: time.Now().Add(10 * time.Minute)},
		{UserID: "user-3", ProductID: "p1", Quantity: 5, ExpiresAt: time.Now().Add(-time.Minute)},
		{UserID: "user-1", ProductID: "p1", Quantity: 5, ExpiresAt: time.Now().Add(10 * time.Minute)},
	}

	_, err := f.svc.CreateOrder(context.Background(), walletInput("20.00", ItemInput{ProductID: "p1", Quantity: 2}))
	e := apperr.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.CodeInsufficientStock, e.Code)
	violations := e.Details.([]inventoryModel.StockViolation)
	assert.Equal(t, 1, violations[0].Available)

	_, err = f.svc.CreateOrder(context.Background(), walletInput("10.00", ItemInput{ProductID: "p1", Quantity: 1}))
	assert.NoError(t, err)
}

func TestCreateOrderTotals(t *testing.T) {
	t.Run("Item totals add up to the order total", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{
			product("p1", "Pan", "1.35", 50),
			product("p2", "Leche", "2.10", 50),
			product("p3", "Cafe", "7.99", 50),
		})

		order, err := f.svc.CreateOrder(context.Background(), walletInput("34.73",
			ItemInput{ProductID: "p1", Quantity: 3},
			ItemInput{ProductID: "p2", Quantity: 7},
			ItemInput{ProductID: "p3", Quantity: 2},
		))
		require.NoError(t, err)

		sum := decimal.Zero
		for _, item := range order.Items {
			sum = sum.Add(item.TotalUSD)
		}
		assert.True(t, sum.Equal(order.SubtotalUSD))
		assert.True(t, sum.Equal(order.TotalUSD))
	})

	t.Run("Mismatch beyond one cent is rejected", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{product("p1", "Pan", "12.00", 5)})

		_, err := f.svc.CreateOrder(context.Background(), walletInput("12.02", ItemInput{ProductID: "p1", Quantity: 1}))
		e := apperr.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperr.CodeTotalMismatch, e.Code)
		assert.Equal(t, map[string]string{"expected": "12.00", "received": "12.02"}, e.Details)

		_, err = f.svc.CreateOrder(context.Background(), walletInput("12.01", ItemInput{ProductID: "p1", Quantity: 1}))
		assert.NoError(t, err)
	})

	t.Run("VES orders snapshot the local total", func(t *testing.T) {
		f := newFixture(t, []inventoryModel.Product{product("p1", "Pan", "12.00", 5)})
		in := walletInput("12.00", ItemInput{ProductID: "p1", Quantity: 1})
		in.Currency = model.CurrencyVES
		in.ExchangeRate = decimal.RequireFromString("36.50")

		order, err := f.svc.CreateOrder(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "438.00", order.TotalLocal.StringFixed(2))
	})
}

func TestCreateOrderDiscounts(t *testing.T) {
	approved := model.DiscountRequest{UserID: "user-1", AmountUSD: decimal.NewFromInt(5), Status: model.DiscountApproved}
	approved.ID = "d1"
	used := model.DiscountRequest{UserID: "user-1", AmountUSD: decimal.NewFromInt(5), Status: model.DiscountUsed}
	used.ID = "d2"

	f := newFixture(t, []inventoryModel.Product{product("p1", "Vino", "20.00", 5)}, approved, used)

	in := walletInput("15.00", ItemInput{ProductID: "p1", Quantity: 1})
	in.DiscountIDs = []string{"d1"}
	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "5.00", order.DiscountUSD.StringFixed(2))
	assert.Equal(t, model.DiscountUsed, f.orders.discounts["d1"].Status)
	assert.Equal(t, order.ID, *f.orders.discounts["d1"].OrderID)

	in.DiscountIDs = []string{"d2"}
	_, err = f.svc.CreateOrder(context.Background(), in)
	assert.Equal(t, apperr.CodeDiscountNotAvailable, codeOf(err))

	in.DiscountIDs = []string{"d1"}
	_, err = f.svc.CreateOrder(context.Background(), in)
	assert.Equal(t, apperr.CodeDiscountNotAvailable, codeOf(err))
}

func TestCreateOrderInsufficientWallet(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Televisor", "150.00", 5)})

	_, err := f.svc.CreateOrder(context.Background(), walletInput("150.00", ItemInput{ProductID: "p1", Quantity: 1}))
	assert.Equal(t, apperr.CodeInsufficientBalance, codeOf(err))
	assert.Equal(t, 5, f.products.stock("p1"))
	assert.Empty(t, f.notifier.Sent())
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Pan", "12.00", 5)})
	item := ItemInput{ProductID: "p1", Quantity: 1}

	cases := []struct {
		name   string
		mutate func(in *CreateOrderInput)
		field  string
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }, "items"},
		{"zero quantity", func(in *CreateOrderInput) { in.Items = []ItemInput{{ProductID: "p1"}} }, "items.quantity"},
		{"unknown currency", func(in *CreateOrderInput) { in.Currency = "EUR" }, "currency"},
		{"VES without rate", func(in *CreateOrderInput) { in.Currency = model.CurrencyVES }, "exchangeRate"},
		{"delivery without address", func(in *CreateOrderInput) { in.DeliveryMethod = model.DeliveryLocal }, "shippingAddress"},
		{"unknown payment method", func(in *CreateOrderInput) { in.PaymentMethod = "BITCOIN" }, "paymentMethod"},
		{"zero total", func(in *CreateOrderInput) { in.TotalUSD = decimal.Zero }, "total"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := walletInput("12.00", item)
			tc.mutate(&in)

			_, err := f.svc.CreateOrder(context.Background(), in)
			e := apperr.As(err)
			require.NotNil(t, e)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			fields := e.Details.([]FieldError)
			var names []string
			for _, fe := range fields {
				names = append(names, fe.Field)
			}
			assert.Contains(t, names, tc.field)
		})
	}
	assert.Equal(t, 0, f.orders.count())
}

func statusPtr(s model.Status) *model.Status { return &s }

func paymentPtr(p model.PaymentStatus) *model.PaymentStatus { return &p }

func TestCancelWalletOrderRestoresStockOnce(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe", "25.00", 10)})
	order, err := f.svc.CreateOrder(context.Background(), walletInput("50.00", ItemInput{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)
	require.Equal(t, 8, f.products.stock("p1"))

	cancelled, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.StockCommitted)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 10, f.products.stock("p1"))

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, 10, f.products.stock("p1"))

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusConfirmed)})
	assert.Equal(t, apperr.CodeInvalidTransition, codeOf(err))

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{PaymentStatus: paymentPtr(model.PaymentRefunded)})
	require.NoError(t, err)

	kinds := f.notifier.Kinds()
	assert.Equal(t, []notify.Kind{notify.KindOrderCreated, notify.KindOrderCancelled}, kinds)
}

func TestCancelDeferredOrderReleasesReservations(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Harina", "5.00", 10)})
	in := walletInput("10.00", ItemInput{ProductID: "p1", Quantity: 2})
	in.PaymentMethod = model.PaymentZelle

	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, f.reservations.all(), 1)

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusCancelled)})
	require.NoError(t, err)
	assert.Empty(t, f.reservations.all())
	assert.Equal(t, 10, f.products.stock("p1"))
}

func TestConfirmDeferredPayment(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Harina", "5.00", 10)})
	in := walletInput("15.00", ItemInput{ProductID: "p1", Quantity: 3})
	in.PaymentMethod = model.PaymentPagoMovil

	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	f.reservations.rows = append(f.reservations.rows, inventoryModel.StockReservation{
		UserID: "user-2", ProductID: "p1", OrderID: "other-order", Quantity: 1, ExpiresAt: time.Now().Add(time.Minute),
	})

	paid, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{PaymentStatus: paymentPtr(model.PaymentPaid)})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
	assert.True(t, paid.StockCommitted)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, 7, f.products.stock("p1"))

	remaining := f.reservations.all()
	require.Len(t, remaining, 1)
	assert.Equal(t, "other-order", remaining[0].OrderID)

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{PaymentStatus: paymentPtr(model.PaymentPaid)})
	require.NoError(t, err)
	assert.Equal(t, 7, f.products.stock("p1"))

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, 10, f.products.stock("p1"))

	assert.Contains(t, f.notifier.Kinds(), notify.KindPaymentConfirmed)
}

func TestPaymentOnCancelledOrderRejected(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Harina", "5.00", 10)})
	in := walletInput("10.00", ItemInput{ProductID: "p1", Quantity: 2})
	in.PaymentMethod = model.PaymentCash

	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{
		Status:        statusPtr(model.StatusCancelled),
		PaymentStatus: paymentPtr(model.PaymentPaid),
	})
	assert.Equal(t, apperr.CodeInvalidTransition, codeOf(err))
}

func TestShippingAndDeliveryNotifications(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe", "25.00", 10)})
	order, err := f.svc.CreateOrder(context.Background(), walletInput("25.00", ItemInput{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	carrier, tracking := "MRW", "MRW-0042"
	shipped, err := f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{
		Status:          statusPtr(model.StatusShipped),
		ShippingCarrier: &carrier,
		TrackingNumber:  &tracking,
	})
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, "MRW-0042", shipped.TrackingNumber)

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusDelivered)})
	require.NoError(t, err)

	sent := f.notifier.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, notify.KindOrderShipped, sent[1].Kind)
	assert.Equal(t, "MRW", sent[1].Data["carrier"])
	assert.Equal(t, "MRW-0042", sent[1].Data["trackingNumber"])
	assert.Equal(t, notify.KindOrderDelivered, sent[2].Kind)
	assert.Equal(t, notify.KindReviewReminder, sent[3].Kind)
	require.NotNil(t, sent[3].DeliverAfter)
	assert.Equal(t, testNow.Add(72*time.Hour), *sent[3].DeliverAfter)

	events := f.audit.Events()
	require.Len(t, events, 2)
	assert.Equal(t, auditModel.ActionOrderStatusChanged, events[0].Action)
	assert.Equal(t, "PROCESSING", events[0].Details["from_status"])
	assert.Equal(t, "SHIPPED", events[0].Details["to_status"])
	assert.Equal(t, "staff-1", events[0].ActorID)
}

func TestSameStatusPatchIsNoop(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe", "25.00", 10)})
	order, err := f.svc.CreateOrder(context.Background(), walletInput("25.00", ItemInput{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(context.Background(), order.ID, "staff-1", StatusPatch{Status: statusPtr(model.StatusProcessing)})
	require.NoError(t, err)
	assert.Empty(t, f.orders.updates)
	assert.Empty(t, f.audit.Events())
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.UpdateOrderStatus(context.Background(), "missing", "staff-1", StatusPatch{Status: statusPtr(model.StatusConfirmed)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.UpdateOrderStatus(context.Background(), "missing", "staff-1", StatusPatch{Status: statusPtr("LOST")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTransitionTable(t *testing.T) {
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			if from == to {
				continue
			}
			_, ok := lookupTransition(from, to)
			switch {
			case from == model.StatusCancelled:
				assert.False(t, ok, "%s -> %s", from, to)
			case to == model.StatusPending:
				assert.False(t, ok, "%s -> %s", from, to)
			default:
				assert.True(t, ok, "%s -> %s", from, to)
			}
		}
	}

	rule, _ := lookupTransition(model.StatusPending, model.StatusReadyForPickup)
	assert.Equal(t, "shipped_at", rule.column)
	rule, _ = lookupTransition(model.StatusShipped, model.StatusDelivered)
	assert.True(t, rule.reviewReminder)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe", "25.00", 10)})
	order, err := f.svc.CreateOrder(context.Background(), walletInput("25.00", ItemInput{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), order.ID, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = f.svc.GetOrder(context.Background(), order.ID, "user-2", false)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.GetOrder(context.Background(), order.ID, "staff-1", true)
	assert.NoError(t, err)

	page, err := f.svc.ListOrders(context.Background(), "user-1", utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 20, page.Limit)
}

func TestOrderOwner(t *testing.T) {
	f := newFixture(t, []inventoryModel.Product{product("p1", "Cafe", "25.00", 10)})
	order, err := f.svc.CreateOrder(context.Background(), walletInput("25.00", ItemInput{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	owners := NewOwnershipService(f.orders)
	owner, err := owners.OrderOwner(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)

	_, err = owners.OrderOwner(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
