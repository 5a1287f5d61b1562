package service

import (
	"context"
	"time"

	"storefront/internal/domain/order/model"
	"storefront/internal/pkg/notify"

	"gorm.io/gorm"
)

// anyStatus 通配来源状态，终态除外
const anyStatus model.Status = "*"

type transitionKey struct {
	from model.Status
	to   model.Status
}

// effect 状态流转在同一事务内的副作用
type effect func(ctx context.Context, s *orderService, tx *gorm.DB, o *model.Order, fields map[string]interface{}) error

type transition struct {
	column         string
	stamp          func(o *model.Order, t *time.Time)
	notify         notify.Kind
	effects        []effect
	reviewReminder bool
}

// terminalStatuses 进入后不再允许任何流转
var terminalStatuses = map[model.Status]bool{
	model.StatusCancelled: true,
}

var transitions = map[transitionKey]transition{
	{anyStatus, model.StatusConfirmed}: {
		column: "confirmed_at",
		stamp:  func(o *model.Order, t *time.Time) { o.ConfirmedAt = t },
		notify: notify.KindOrderConfirmed,
	},
	{anyStatus, model.StatusProcessing}: {
		column: "processing_at",
		stamp:  func(o *model.Order, t *time.Time) { o.ProcessingAt = t },
		notify: notify.KindOrderPreparing,
	},
	{anyStatus, model.StatusReadyForPickup}: {
		column: "shipped_at",
		stamp:  func(o *model.Order, t *time.Time) { o.ShippedAt = t },
		notify: notify.KindOrderReadyForPickup,
	},
	{anyStatus, model.StatusShipped}: {
		column: "shipped_at",
		stamp:  func(o *model.Order, t *time.Time) { o.ShippedAt = t },
		notify: notify.KindOrderShipped,
	},
	{anyStatus, model.StatusDelivered}: {
		column:         "delivered_at",
		stamp:          func(o *model.Order, t *time.Time) { o.DeliveredAt = t },
		notify:         notify.KindOrderDelivered,
		reviewReminder: true,
	},
	{anyStatus, model.StatusCancelled}: {
		column:  "cancelled_at",
		stamp:   func(o *model.Order, t *time.Time) { o.CancelledAt = t },
		notify:  notify.KindOrderCancelled,
		effects: []effect{releaseStock},
	},
}

// lookupTransition 先匹配精确规则，再匹配通配规则
func lookupTransition(from, to model.Status) (transition, bool) {
	if terminalStatuses[from] {
		return transition{}, false
	}
	if t, ok := transitions[transitionKey{from, to}]; ok {
		return t, true
	}
	t, ok := transitions[transitionKey{anyStatus, to}]
	return t, ok
}

// releaseStock 已扣减则回补库存，否则只释放预留
func releaseStock(ctx context.Context, s *orderService, tx *gorm.DB, o *model.Order, fields map[string]interface{}) error {
	if !o.StockCommitted {
		_, err := s.reservations.ReleaseForOrder(ctx, tx, o.ID)
		return err
	}
	for _, item := range o.Items {
		if item.IsDigital() {
			continue
		}
		if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	o.StockCommitted = false
	fields["stock_committed"] = false
	return nil
}

// commitDeferredStock 延迟支付确认后真正扣减库存并释放预留
func commitDeferredStock(ctx context.Context, s *orderService, tx *gorm.DB, o *model.Order, fields map[string]interface{}) error {
	if o.StockCommitted {
		return nil
	}
	for _, item := range o.Items {
		if item.IsDigital() {
			continue
		}
		if err := s.stock.CommitDeferred(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if _, err := s.reservations.ReleaseForOrder(ctx, tx, o.ID); err != nil {
		return err
	}
	o.StockCommitted = true
	fields["stock_committed"] = true
	return nil
}
