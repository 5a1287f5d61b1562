package repository

import (
	"context"
	"time"

	"storefront/internal/domain/inventory/model"

	"gorm.io/gorm"
)

type ReservationRepository interface {
	WithTx(tx *gorm.DB) ReservationRepository
	Create(ctx context.Context, reservation *model.StockReservation) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// SumActiveByProduct 其他用户未过期预留的数量合计
	SumActiveByProduct(ctx context.Context, productIDs []string, excludeUserID string, now time.Time) (map[string]int, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) WithTx(tx *gorm.DB) ReservationRepository {
	if tx == nil {
		return r
	}
	return &reservationRepository{db: tx}
}

func (r *reservationRepository) Create(ctx context.Context, reservation *model.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *reservationRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) SumActiveByProduct(ctx context.Context, productIDs []string, excludeUserID string, now time.Time) (map[string]int, error) {
	reserved := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return reserved, nil
	}

	var rows []struct {
		ProductID string
		Reserved  int
	}
	err := r.db.WithContext(ctx).Model(&model.StockReservation{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS reserved").
		Where("product_id IN ? AND user_id <> ? AND expires_at > ?", productIDs, excludeUserID, now).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		reserved[row.ProductID] = row.Reserved
	}
	return reserved, nil
}
