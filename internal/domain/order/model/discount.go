package model

import (
	"time"

	baseModel "storefront/pkg/model"

	"github.com/shopspring/decimal"
)

// DiscountStatus 折扣申请状态
type DiscountStatus string

const (
	DiscountPending  DiscountStatus = "PENDING"
	DiscountApproved DiscountStatus = "APPROVED"
	DiscountUsed     DiscountStatus = "USED"
	DiscountRejected DiscountStatus = "REJECTED"
)

// DiscountRequest 用户申请并经审核的折扣，只能在一个订单中使用一次
type DiscountRequest struct {
	baseModel.BaseModel
	UserID    string          `gorm:"type:uuid;index;not null" json:"userId"`
	Code      string          `gorm:"size:64" json:"code"`
	AmountUSD decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amountUsd"`
	Status    DiscountStatus  `gorm:"size:16;index;not null" json:"status"`
	OrderID   *string         `gorm:"type:uuid" json:"orderId,omitempty"`
	UsedAt    *time.Time      `json:"usedAt,omitempty"`
}
