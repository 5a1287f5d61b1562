package model

import (
	"time"

	baseModel "storefront/pkg/model"
)

// StockReservation 库存软锁定：不扣减 Product.stock，到期后失效
type StockReservation struct {
	baseModel.BaseModel
	UserID    string    `gorm:"type:uuid;index;not null" json:"userId"`
	ProductID string    `gorm:"type:uuid;index:idx_reservation_product_expiry;not null" json:"productId"`
	OrderID   string    `gorm:"type:uuid;index" json:"orderId"`
	Quantity  int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	ExpiresAt time.Time `gorm:"index:idx_reservation_product_expiry;not null" json:"expiresAt"`
}

func (r *StockReservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
