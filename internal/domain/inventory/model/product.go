package model

import (
	baseModel "storefront/pkg/model"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "DRAFT"
	ProductStatusPublished ProductStatus = "PUBLISHED"
	ProductStatusArchived  ProductStatus = "ARCHIVED"
)

type ProductType string

const (
	ProductTypePhysical ProductType = "PHYSICAL"
	// ProductTypeDigital 数字商品不参与库存计算
	ProductTypeDigital ProductType = "DIGITAL"
)

// Product 商品（目录由其他模块维护，这里只关心价格、库存与状态）
type Product struct {
	baseModel.BaseModel
	Name        string          `gorm:"size:255;not null" json:"name"`
	SKU         string          `gorm:"size:64;uniqueIndex" json:"sku"`
	PriceUSD    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"priceUsd"`
	Stock       int             `gorm:"not null;check:stock >= 0" json:"stock"`
	Status      ProductStatus   `gorm:"size:16;index;not null" json:"status"`
	ProductType ProductType     `gorm:"size:16;not null" json:"productType"`
}

func (p *Product) IsDigital() bool {
	return p.ProductType == ProductTypeDigital
}

func (p *Product) IsPurchasable() bool {
	return p.Status == ProductStatusPublished
}
