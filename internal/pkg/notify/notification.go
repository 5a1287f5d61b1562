package notify

import (
	"context"
	"time"
)

// Kind 通知类型，由下游通知服务渲染成推送/邮件
type Kind string

const (
	KindOrderCreated        Kind = "order_created"
	KindOrderConfirmed      Kind = "order_confirmed"
	KindOrderPreparing      Kind = "order_preparing"
	KindOrderReadyForPickup Kind = "order_ready_for_pickup"
	KindOrderShipped        Kind = "order_shipped"
	KindOrderDelivered      Kind = "order_delivered"
	KindOrderCancelled      Kind = "order_cancelled"
	KindPaymentConfirmed    Kind = "payment_confirmed"
	KindReviewReminder      Kind = "review_reminder"
	KindRechargeApproved    Kind = "recharge_approved"
)

// Notification 面向用户的通知事件
type Notification struct {
	Kind         Kind              `json:"kind"`
	UserID       string            `json:"userId"`
	OrderID      string            `json:"orderId,omitempty"`
	OrderNumber  string            `json:"orderNumber,omitempty"`
	Email        bool              `json:"email"`
	DeliverAfter *time.Time        `json:"deliverAfter,omitempty"` // 延迟投递，例如评价提醒
	Data         map[string]string `json:"data,omitempty"`
	OccurredAt   time.Time         `json:"occurredAt"`
}

// Dispatcher 通知分发器
// 尽力而为：实现方自行记录失败，绝不把错误返回给业务事务
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}
