package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/order/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOrderNotFound 订单不存在
var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	NextOrderNumber(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindForUpdate(ctx context.Context, id string) (*model.Order, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	FindApprovedDiscounts(ctx context.Context, userID string, ids []string) ([]model.DiscountRequest, error)
	MarkDiscountsUsed(ctx context.Context, userID string, ids []string, orderID string, usedAt time.Time) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepository{db: tx}
}

// NextOrderNumber 按年原子递增，格式 ORD-<year>-<6 位序号>
func (r *orderRepository) NextOrderNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO order_sequences (year, last_value) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value`, year,
	).Scan(&seq).Error
	if err != nil {
		return "", err
	}
	if seq <= 0 {
		return "", fmt.Errorf("order sequence for %d returned %d", year, seq)
	}
	return fmt.Sprintf("ORD-%d-%06d", year, seq), nil
}

// Create 写入订单与明细
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return db.Create(&order.Items).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate 行锁读取，状态流转期间阻塞并发修改
func (r *orderRepository) FindForUpdate(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Items").Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var owners []string
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Limit(1).Pluck("user_id", &owners).Error
	if err != nil {
		return "", err
	}
	if len(owners) == 0 {
		return "", ErrOrderNotFound
	}
	return owners[0], nil
}

func (r *orderRepository) FindApprovedDiscounts(ctx context.Context, userID string, ids []string) ([]model.DiscountRequest, error) {
	var discounts []model.DiscountRequest
	err := r.db.WithContext(ctx).
		Where("id IN ? AND user_id = ? AND status = ?", ids, userID, model.DiscountApproved).
		Find(&discounts).Error
	return discounts, err
}

// MarkDiscountsUsed 只更新仍为 APPROVED 的记录，调用方比对返回行数防止重复使用
func (r *orderRepository) MarkDiscountsUsed(ctx context.Context, userID string, ids []string, orderID string, usedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.DiscountRequest{}).
		Where("id IN ? AND user_id = ? AND status = ?", ids, userID, model.DiscountApproved).
		Updates(map[string]interface{}{
			"status":   model.DiscountUsed,
			"order_id": orderID,
			"used_at":  usedAt,
		})
	return result.RowsAffected, result.Error
}
