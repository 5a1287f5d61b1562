package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/inventory/model"

	"gorm.io/gorm"
)

// ErrInsufficientStock 条件扣减未命中任何行
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("product not found")

// ProductRepository 库存的所有修改都是单条语句的行级原子更新
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
	DecrementStockClamped(ctx context.Context, productID string, qty int) error
	IncrementStock(ctx context.Context, productID string, qty int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &productRepository{db: tx}
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

// DecrementStock 乐观扣减：库存不足时不修改任何行
func (r *productRepository) DecrementStock(ctx context.Context, productID string, qty int) error {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// DecrementStockClamped 延迟支付确认时扣减，库存最低为 0
func (r *productRepository) DecrementStockClamped(ctx context.Context, productID string, qty int) error {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("GREATEST(stock - ?, 0)", qty))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// IncrementStock 取消订单时回补库存
func (r *productRepository) IncrementStock(ctx context.Context, productID string, qty int) error {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
