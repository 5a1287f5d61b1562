package model

import (
	baseModel "storefront/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionType 交易类型
type TransactionType string

const (
	TransactionRecharge   TransactionType = "RECHARGE"
	TransactionPurchase   TransactionType = "PURCHASE"
	TransactionRefund     TransactionType = "REFUND"
	TransactionBonus      TransactionType = "BONUS"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus 交易状态，只能从 PENDING 单向流转到终态
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// UserBalance 用户钱包
type UserBalance struct {
	baseModel.BaseModel
	UserID         string          `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	Balance        decimal.Decimal `gorm:"type:numeric(14,2);not null;check:balance >= 0" json:"balance"`
	TotalSpent     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"totalSpent"`
	TotalRecharges decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"totalRecharges"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}

// Transaction 钱包流水
type Transaction struct {
	baseModel.BaseModel
	BalanceID     string                       `gorm:"type:uuid;index;not null" json:"balanceId"`
	Type          TransactionType              `gorm:"size:20;not null" json:"type"`
	Status        TransactionStatus            `gorm:"size:20;index;not null" json:"status"`
	Amount        decimal.Decimal              `gorm:"type:numeric(14,2);not null" json:"amount"` // USD
	AmountLocal   decimal.Decimal              `gorm:"type:numeric(14,2)" json:"amountLocal"`     // Bs
	Currency      string                       `gorm:"size:3;not null" json:"currency"`
	Reference     string                       `gorm:"size:64" json:"reference,omitempty"`
	PaymentMethod string                       `gorm:"size:32" json:"paymentMethod,omitempty"`
	Metadata      datatypes.JSONType[Metadata] `gorm:"type:jsonb" json:"metadata"`
}

func (Transaction) TableName() string {
	return "wallet_transactions"
}

// Meta 读取元数据
func (t *Transaction) Meta() Metadata {
	return t.Metadata.Data()
}

// IsPending 是否仍可审批
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}
