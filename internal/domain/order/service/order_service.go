package service

import (
	"context"
	"errors"
	"strings"
	"time"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	inventoryModel "storefront/internal/domain/inventory/model"
	inventoryService "storefront/internal/domain/inventory/service"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	walletModel "storefront/internal/domain/wallet/model"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/notify"
	"storefront/pkg/apperr"
	"storefront/pkg/database"
	"storefront/pkg/metrics"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultReviewReminderDelay 送达后多久提醒评价
const DefaultReviewReminderDelay = 72 * time.Hour

// totalTolerance 客户端总额与服务端计算值允许的误差
var totalTolerance = decimal.RequireFromString("0.01")

// Ledger 钱包扣款
type Ledger interface {
	DebitForPurchase(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal, orderID, orderNumber string) (*walletModel.Transaction, error)
}

// ItemInput 下单商品
type ItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput 下单参数
type CreateOrderInput struct {
	UserID          string
	Items           []ItemInput
	Currency        model.Currency
	ExchangeRate    decimal.Decimal
	TotalUSD        decimal.Decimal
	TaxUSD          decimal.Decimal
	ShippingUSD     decimal.Decimal
	DeliveryMethod  model.DeliveryMethod
	PaymentMethod   model.PaymentMethod
	ShippingAddress *model.Address
	DiscountIDs     []string
	Notes           string
}

// StatusPatch 后台修改订单，nil 字段不修改
type StatusPatch struct {
	Status          *model.Status
	PaymentStatus   *model.PaymentStatus
	ShippingCarrier *string
	TrackingNumber  *string
	Notes           *string
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, actorID string, patch StatusPatch) (*model.Order, error)
	GetOrder(ctx context.Context, orderID, userID string, isManager bool) (*model.Order, error)
	ListOrders(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error)
}

type orderService struct {
	repo         repository.OrderRepository
	stock        inventoryService.StockService
	reservations inventoryService.ReservationService
	ledger       Ledger
	transactor   database.Transactor
	audit        auditService.AuditService
	notifier     notify.Dispatcher
	cfg          config.Provider
	metrics      *metrics.MetricsCollector
	log          *zap.Logger
	now          func() time.Time
}

func NewOrderService(
	repo repository.OrderRepository,
	stock inventoryService.StockService,
	reservations inventoryService.ReservationService,
	ledger Ledger,
	transactor database.Transactor,
	audit auditService.AuditService,
	notifier notify.Dispatcher,
	cfg config.Provider,
	m *metrics.MetricsCollector,
	log *zap.Logger,
) OrderService {
	return &orderService{
		repo:         repo,
		stock:        stock,
		reservations: reservations,
		ledger:       ledger,
		transactor:   transactor,
		audit:        audit,
		notifier:     notifier,
		cfg:          cfg,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// CreateOrder 创建订单
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	order, err := s.createOrder(ctx, in)
	if err != nil {
		reason := apperr.CodeInternal
		if e := apperr.As(err); e != nil {
			reason = e.Code
		}
		s.metrics.OrderFailed(reason)
		return nil, err
	}

	s.metrics.OrderCreated(string(order.PaymentMethod))
	s.notifier.Dispatch(ctx, notify.Notification{
		Kind:        notify.KindOrderCreated,
		UserID:      order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       true,
		Data: map[string]string{
			"total":         order.TotalUSD.StringFixed(2),
			"paymentMethod": string(order.PaymentMethod),
		},
		OccurredAt: s.now(),
	})
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(order.PaymentMethod)),
	)
	return order, nil
}

func (s *orderService) createOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if err := s.checkBounds(in.TotalUSD); err != nil {
		return nil, err
	}

	requested, ids := aggregateItems(in.Items)
	products, err := s.stock.LoadProducts(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reservations.ActiveReservedByOthers(ctx, nil, ids, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkAvailability(ids, requested, products, reserved); err != nil {
		return nil, err
	}

	discounts, err := s.loadDiscounts(ctx, in.UserID, in.DiscountIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := buildOrder(in, products, discounts)
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	if diff := order.TotalUSD.Sub(in.TotalUSD).Abs(); diff.GreaterThan(totalTolerance) {
		return nil, apperr.BusinessRule(apperr.CodeTotalMismatch, "order total does not match").
			WithDetails(map[string]string{
				"expected": order.TotalUSD.StringFixed(2),
				"received": in.TotalUSD.StringFixed(2),
			})
	}
	if !in.PaymentMethod.Deferred() {
		order.Status = model.StatusProcessing
		order.PaymentStatus = model.PaymentPaid
		order.StockCommitted = true
		order.PaidAt = &now
		order.ProcessingAt = &now
	}

	err = s.transactor.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := repo.NextOrderNumber(ctx, now.Year())
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		if len(discounts) > 0 {
			ids := make([]string, len(discounts))
			for i, d := range discounts {
				ids[i] = d.ID
			}
			n, err := repo.MarkDiscountsUsed(ctx, in.UserID, ids, order.ID, now)
			if err != nil {
				return err
			}
			if n != int64(len(ids)) {
				return discountNotAvailable()
			}
		}

		if in.PaymentMethod.Deferred() {
			return s.reserveItems(ctx, tx, order)
		}
		return s.payWithWallet(ctx, tx, order)
	})
	if err != nil {
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}
	return order, nil
}

func (s *orderService) payWithWallet(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if _, err := s.ledger.DebitForPurchase(ctx, tx, order.UserID, order.TotalUSD, order.ID, order.OrderNumber); err != nil {
		return err
	}
	for _, item := range order.Items {
		if item.IsDigital() {
			continue
		}
		if err := s.stock.DecrementForPurchase(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) reserveItems(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	for _, item := range order.Items {
		if item.IsDigital() {
			continue
		}
		if _, err := s.reservations.Reserve(ctx, tx, order.UserID, item.ProductID, order.ID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) checkBounds(total decimal.Decimal) error {
	store := s.cfg.Current().Store
	minTotal, maxTotal := store.MinOrderUSD, store.MaxOrderUSD

	if total.LessThan(minTotal) || (maxTotal.IsPositive() && total.GreaterThan(maxTotal)) {
		details := map[string]string{
			"total": total.StringFixed(2),
			"min":   minTotal.StringFixed(2),
		}
		if maxTotal.IsPositive() {
			details["max"] = maxTotal.StringFixed(2)
		}
		return apperr.BusinessRule(apperr.CodeOrderAmountOutOfBounds, "order total is outside the allowed range").
			WithDetails(details)
	}
	return nil
}

func (s *orderService) loadDiscounts(ctx context.Context, userID string, ids []string) ([]model.DiscountRequest, error) {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	discounts, err := s.repo.FindApprovedDiscounts(ctx, userID, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(discounts) != len(ids) {
		return nil, discountNotAvailable()
	}
	return discounts, nil
}

func discountNotAvailable() error {
	return apperr.BusinessRule(apperr.CodeDiscountNotAvailable, "one or more discounts are no longer available")
}

func validateCreate(in CreateOrderInput) error {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if in.UserID == "" {
		add("userId", "required")
	}
	if len(in.Items) == 0 {
		add("items", "at least one item is required")
	}
	for _, item := range in.Items {
		if item.ProductID == "" {
			add("items.productId", "required")
		}
		if item.Quantity < 1 {
			add("items.quantity", "must be at least 1")
		}
	}
	switch in.Currency {
	case model.CurrencyUSD:
	case model.CurrencyVES:
		if !in.ExchangeRate.IsPositive() {
			add("exchangeRate", "required for VES orders")
		}
	default:
		add("currency", "must be USD or VES")
	}
	if !in.DeliveryMethod.Valid() {
		add("deliveryMethod", "invalid delivery method")
	} else if in.DeliveryMethod != model.DeliveryPickup && !validAddress(in.ShippingAddress) {
		add("shippingAddress", "required for delivery")
	}
	if !in.PaymentMethod.Valid() {
		add("paymentMethod", "invalid payment method")
	}
	if !in.TotalUSD.IsPositive() {
		add("total", "must be positive")
	}
	if in.TaxUSD.IsNegative() {
		add("tax", "must not be negative")
	}
	if in.ShippingUSD.IsNegative() {
		add("shipping", "must not be negative")
	}

	if len(errs) > 0 {
		return apperr.Validation("", "invalid order").WithDetails(errs)
	}
	return nil
}

func validAddress(a *model.Address) bool {
	return a != nil && strings.TrimSpace(a.Line1) != "" && strings.TrimSpace(a.City) != ""
}

// aggregateItems 同一商品多行时合并数量参与库存校验，保持首次出现的顺序
func aggregateItems(items []ItemInput) (map[string]int, []string) {
	requested := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := requested[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	return requested, ids
}

// checkAvailability 一次性收集全部违规
func checkAvailability(ids []string, requested map[string]int, products map[string]*inventoryModel.Product, reserved map[string]int) error {
	var violations []inventoryModel.StockViolation
	onlyUnavailable := true

	for _, id := range ids {
		p, ok := products[id]
		switch {
		case !ok:
			violations = append(violations, inventoryModel.StockViolation{
				ProductID: id,
				Requested: requested[id],
				Reason:    inventoryModel.ReasonNotFound,
			})
		case !p.IsPurchasable():
			violations = append(violations, inventoryModel.StockViolation{
				ProductID: id,
				Name:      p.Name,
				Requested: requested[id],
				Reason:    inventoryModel.ReasonUnpublished,
			})
		case p.IsDigital():
		default:
			available := p.Stock - reserved[id]
			if available < 0 {
				available = 0
			}
			if requested[id] > available {
				onlyUnavailable = false
				violations = append(violations, inventoryModel.StockViolation{
					ProductID: id,
					Name:      p.Name,
					Requested: requested[id],
					Available: available,
					Reason:    inventoryModel.ReasonInsufficientStock,
				})
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	if onlyUnavailable {
		return apperr.BusinessRule(apperr.CodeProductUnavailable, "some products are not available").WithDetails(violations)
	}
	return apperr.BusinessRule(apperr.CodeInsufficientStock, "insufficient stock").WithDetails(violations)
}

// buildOrder 以实时价格快照明细并计算金额
func buildOrder(in CreateOrderInput, products map[string]*inventoryModel.Product, discounts []model.DiscountRequest) *model.Order {
	items := make([]model.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, item := range in.Items {
		p := products[item.ProductID]
		line := p.PriceUSD.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		subtotal = subtotal.Add(line)
		items = append(items, model.OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			SKU:          p.SKU,
			ProductType:  string(p.ProductType),
			UnitPriceUSD: p.PriceUSD,
			Quantity:     item.Quantity,
			TotalUSD:     line,
		})
	}

	discount := decimal.Zero
	for _, d := range discounts {
		discount = discount.Add(d.AmountUSD)
	}

	tax := in.TaxUSD.Round(2)
	shipping := in.ShippingUSD.Round(2)
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	rate := decimal.NewFromInt(1)
	if in.Currency == model.CurrencyVES {
		rate = in.ExchangeRate
	}

	order := &model.Order{
		UserID:         in.UserID,
		Currency:       in.Currency,
		ExchangeRate:   rate,
		SubtotalUSD:    subtotal,
		TaxUSD:         tax,
		ShippingUSD:    shipping,
		DiscountUSD:    discount,
		TotalUSD:       total,
		TotalLocal:     total.Mul(rate).Round(2),
		PaymentMethod:  in.PaymentMethod,
		Status:         model.StatusPending,
		PaymentStatus:  model.PaymentPending,
		DeliveryMethod: in.DeliveryMethod,
		Notes:          in.Notes,
		Items:          items,
	}
	if in.ShippingAddress != nil {
		order.ShippingAddress = datatypes.NewJSONType(*in.ShippingAddress)
	}
	return order
}

// UpdateOrderStatus 修改订单状态/支付状态，副作用与订单行锁在同一事务内完成
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID, actorID string, patch StatusPatch) (*model.Order, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.Validation("", "invalid order status")
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
		return nil, apperr.Validation("", "invalid payment status")
	}

	var (
		order   *model.Order
		from    model.Status
		changed bool
		pending []notify.Notification
	)
	err := s.transactor.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pending = nil

		var err error
		order, err = repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		now := s.now()
		fields := make(map[string]interface{})

		if patch.ShippingCarrier != nil {
			order.ShippingCarrier = *patch.ShippingCarrier
			fields["shipping_carrier"] = order.ShippingCarrier
		}
		if patch.TrackingNumber != nil {
			order.TrackingNumber = *patch.TrackingNumber
			fields["tracking_number"] = order.TrackingNumber
		}
		if patch.Notes != nil {
			order.Notes = *patch.Notes
			fields["notes"] = order.Notes
		}

		if patch.Status != nil && *patch.Status != order.Status {
			n, err := s.applyTransition(ctx, tx, order, *patch.Status, now, fields)
			if err != nil {
				return err
			}
			pending = append(pending, n...)
		}

		if patch.PaymentStatus != nil && *patch.PaymentStatus != order.PaymentStatus {
			n, err := s.applyPayment(ctx, tx, order, *patch.PaymentStatus, now, fields)
			if err != nil {
				return err
			}
			pending = append(pending, n...)
		}

		if len(fields) == 0 {
			changed = false
			return nil
		}
		changed = true
		order.UpdatedAt = now
		return repo.UpdateFields(ctx, order.ID, fields)
	})
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}
	if !changed {
		return order, nil
	}

	if order.Status != from {
		s.metrics.OrderTransition(string(from), string(order.Status))
	}
	if err := s.audit.Record(ctx, auditService.Event{
		Action:     auditModel.ActionOrderStatusChanged,
		Severity:   auditModel.SeverityInfo,
		ActorID:    actorID,
		TargetType: "order",
		TargetID:   order.ID,
		Details: map[string]interface{}{
			"order_number":   order.OrderNumber,
			"from_status":    string(from),
			"to_status":      string(order.Status),
			"payment_status": string(order.PaymentStatus),
		},
	}); err != nil {
		s.log.Error("record order status audit", zap.String("order_id", order.ID), zap.Error(err))
	}
	for _, n := range pending {
		s.notifier.Dispatch(ctx, n)
	}
	return order, nil
}

func (s *orderService) applyTransition(ctx context.Context, tx *gorm.DB, order *model.Order, to model.Status, now time.Time, fields map[string]interface{}) ([]notify.Notification, error) {
	rule, ok := lookupTransition(order.Status, to)
	if !ok {
		return nil, apperr.BusinessRule(apperr.CodeInvalidTransition, "order status cannot change").
			WithDetails(map[string]string{"from": string(order.Status), "to": string(to)})
	}

	for _, fx := range rule.effects {
		if err := fx(ctx, s, tx, order, fields); err != nil {
			return nil, err
		}
	}

	order.Status = to
	fields["status"] = to
	if rule.stamp != nil {
		stamped := now
		rule.stamp(order, &stamped)
		fields[rule.column] = stamped
	}

	var out []notify.Notification
	if rule.notify != "" {
		n := s.orderNotification(order, rule.notify, now)
		if to == model.StatusShipped {
			n.Data = map[string]string{
				"carrier":        order.ShippingCarrier,
				"trackingNumber": order.TrackingNumber,
			}
		}
		out = append(out, n)
	}
	if rule.reviewReminder {
		n := s.orderNotification(order, notify.KindReviewReminder, now)
		after := now.Add(s.reviewReminderDelay())
		n.DeliverAfter = &after
		out = append(out, n)
	}
	return out, nil
}

func (s *orderService) applyPayment(ctx context.Context, tx *gorm.DB, order *model.Order, to model.PaymentStatus, now time.Time, fields map[string]interface{}) ([]notify.Notification, error) {
	if to != model.PaymentPaid {
		order.PaymentStatus = to
		fields["payment_status"] = to
		return nil, nil
	}

	if order.Status == model.StatusCancelled {
		return nil, apperr.BusinessRule(apperr.CodeInvalidTransition, "cancelled orders cannot be paid").
			WithDetails(map[string]string{"status": string(order.Status), "paymentStatus": string(to)})
	}
	if err := commitDeferredStock(ctx, s, tx, order, fields); err != nil {
		return nil, err
	}

	paidAt := now
	order.PaymentStatus = to
	order.PaidAt = &paidAt
	fields["payment_status"] = to
	fields["paid_at"] = paidAt

	return []notify.Notification{s.orderNotification(order, notify.KindPaymentConfirmed, now)}, nil
}

func (s *orderService) orderNotification(order *model.Order, kind notify.Kind, now time.Time) notify.Notification {
	return notify.Notification{
		Kind:        kind,
		UserID:      order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       true,
		OccurredAt:  now,
	}
}

func (s *orderService) reviewReminderDelay() time.Duration {
	if d := s.cfg.Current().Store.ReviewReminderDelay; d > 0 {
		return d
	}
	return DefaultReviewReminderDelay
}

// GetOrder 非本人且非管理员时按不存在处理
func (s *orderService) GetOrder(ctx context.Context, orderID, userID string, isManager bool) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if order.UserID != userID && !isManager {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	orders, total, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return utils.NewPageResult(orders, total, page), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
