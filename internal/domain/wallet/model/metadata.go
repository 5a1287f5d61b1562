package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetadataVersion 当前元数据结构版本
const MetadataVersion = 1

// MetadataKind 元数据来源
type MetadataKind string

const (
	KindRechargeRequest     MetadataKind = "recharge_request"
	KindOrderPurchase       MetadataKind = "order_purchase"
	KindManualReview        MetadataKind = "manual_review"
	KindAutoApprovedBankAPI MetadataKind = "auto_approved_bank_api"
)

// Metadata 交易元数据，按 Kind 区分载荷
// 审批时保留原始充值请求，并追加审批来源
type Metadata struct {
	Version      int              `json:"version"`
	Kind         MetadataKind     `json:"kind"`
	Recharge     *RechargeRequest `json:"recharge,omitempty"`
	Purchase     *OrderPurchase   `json:"purchase,omitempty"`
	ManualReview *ManualReview    `json:"manualReview,omitempty"`
	AutoApproval *AutoApproval    `json:"autoApproval,omitempty"`
}

// RechargeRequest 用户提交充值申请时的信息
type RechargeRequest struct {
	RequestedAmountBs decimal.Decimal `json:"requestedAmountBs"`
	ExchangeRate      decimal.Decimal `json:"exchangeRate"`
	PayerPhone        string          `json:"payerPhone,omitempty"`
	BankCode          string          `json:"bankCode,omitempty"`
	RequestedAt       time.Time       `json:"requestedAt"`
}

// OrderPurchase 钱包支付订单
type OrderPurchase struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// ManualReview 人工审核结果
type ManualReview struct {
	ReviewerID string    `json:"reviewerId"`
	Note       string    `json:"note,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

// AutoApproval 银行接口核验通过后的自动审批凭据
type AutoApproval struct {
	VerificationID    string          `json:"verificationId,omitempty"`
	BankReference     string          `json:"bankReference,omitempty"`
	VerifiedAmountBs  decimal.Decimal `json:"verifiedAmountBs"`
	RequestedAmountBs decimal.Decimal `json:"requestedAmountBs"`
	Tolerance         decimal.Decimal `json:"tolerance"`
	ApprovedAt        time.Time       `json:"approvedAt"`
}

func NewRechargeMetadata(r RechargeRequest) Metadata {
	return Metadata{Version: MetadataVersion, Kind: KindRechargeRequest, Recharge: &r}
}

func NewPurchaseMetadata(orderID, orderNumber string) Metadata {
	return Metadata{
		Version:  MetadataVersion,
		Kind:     KindOrderPurchase,
		Purchase: &OrderPurchase{OrderID: orderID, OrderNumber: orderNumber},
	}
}

// WithAutoApproval 返回追加自动审批来源后的副本
func (m Metadata) WithAutoApproval(a AutoApproval) Metadata {
	m.Version = MetadataVersion
	m.Kind = KindAutoApprovedBankAPI
	m.AutoApproval = &a
	return m
}

// WithManualReview 返回追加人工审核来源后的副本
func (m Metadata) WithManualReview(r ManualReview) Metadata {
	m.Version = MetadataVersion
	m.Kind = KindManualReview
	m.ManualReview = &r
	return m
}
