package model

import (
	"time"

	baseModel "storefront/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status 订单状态
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusProcessing     Status = "PROCESSING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// Statuses 全部订单状态
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusReadyForPickup,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod 支付方式，除钱包外均为延迟确认
type PaymentMethod string

const (
	PaymentWallet       PaymentMethod = "WALLET"
	PaymentPagoMovil    PaymentMethod = "PAGO_MOVIL"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentZelle        PaymentMethod = "ZELLE"
	PaymentCash         PaymentMethod = "CASH"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentWallet, PaymentPagoMovil, PaymentBankTransfer, PaymentZelle, PaymentCash:
		return true
	}
	return false
}

// Deferred 延迟支付：下单时只预留库存
func (p PaymentMethod) Deferred() bool {
	return p != PaymentWallet
}

// DeliveryMethod 配送方式
type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "PICKUP"
	DeliveryLocal    DeliveryMethod = "DELIVERY"
	DeliveryShipping DeliveryMethod = "SHIPPING"
)

func (d DeliveryMethod) Valid() bool {
	switch d {
	case DeliveryPickup, DeliveryLocal, DeliveryShipping:
		return true
	}
	return false
}

// Currency 下单币种
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyVES Currency = "VES"
)

// Address 收货地址
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Order 订单，金额在创建时快照，之后只通过状态流转修改
type Order struct {
	baseModel.BaseModel
	OrderNumber     string                      `gorm:"size:20;uniqueIndex;not null" json:"orderNumber"`
	UserID          string                      `gorm:"type:uuid;index;not null" json:"userId"`
	Currency        Currency                    `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal             `gorm:"type:numeric(14,4);not null" json:"exchangeRate"`
	SubtotalUSD     decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"subtotalUsd"`
	TaxUSD          decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"taxUsd"`
	ShippingUSD     decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"shippingUsd"`
	DiscountUSD     decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"discountUsd"`
	TotalUSD        decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"totalUsd"`
	TotalLocal      decimal.Decimal             `gorm:"type:numeric(16,2);not null" json:"totalLocal"`
	PaymentMethod   PaymentMethod               `gorm:"size:20;not null" json:"paymentMethod"`
	Status          Status                      `gorm:"size:20;index;not null" json:"status"`
	PaymentStatus   PaymentStatus               `gorm:"size:20;not null" json:"paymentStatus"`
	DeliveryMethod  DeliveryMethod              `gorm:"size:20;not null" json:"deliveryMethod"`
	ShippingAddress datatypes.JSONType[Address] `gorm:"type:jsonb" json:"shippingAddress"`
	ShippingCarrier string                      `gorm:"size:64" json:"shippingCarrier,omitempty"`
	TrackingNumber  string                      `gorm:"size:64" json:"trackingNumber,omitempty"`
	Notes           string                      `gorm:"size:500" json:"notes,omitempty"`
	// StockCommitted 库存是否已真正扣减，取消时据此决定是否回补
	StockCommitted bool        `gorm:"not null" json:"stockCommitted"`
	PaidAt         *time.Time  `json:"paidAt,omitempty"`
	ConfirmedAt    *time.Time  `json:"confirmedAt,omitempty"`
	ProcessingAt   *time.Time  `json:"processingAt,omitempty"`
	ShippedAt      *time.Time  `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time  `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time  `json:"cancelledAt,omitempty"`
	Items          []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem 下单时的商品快照，不随商品价格变化
type OrderItem struct {
	baseModel.BaseModel
	OrderID      string          `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID    string          `gorm:"type:uuid;index;not null" json:"productId"`
	ProductName  string          `gorm:"size:255;not null" json:"productName"`
	SKU          string          `gorm:"size:64" json:"sku"`
	ProductType  string          `gorm:"size:16;not null" json:"productType"`
	UnitPriceUSD decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unitPriceUsd"`
	Quantity     int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	TotalUSD     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"totalUsd"`
}

// IsDigital 数字商品不参与库存核算
func (i *OrderItem) IsDigital() bool {
	return i.ProductType == "DIGITAL"
}

// OrderSequence 按年递增的订单号计数器
type OrderSequence struct {
	Year      int   `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64 `gorm:"not null"`
}
