package service

import (
	"context"
	"time"

	"storefront/internal/domain/inventory/model"
	"storefront/internal/domain/inventory/repository"
	"storefront/internal/pkg/config"
	"storefront/pkg/apperr"
	"storefront/pkg/metrics"

	"gorm.io/gorm"
)

// DefaultReservationTTL 预留时长
const DefaultReservationTTL = 15 * time.Minute

// ReservationService 库存预留管理
type ReservationService interface {
	Reserve(ctx context.Context, tx *gorm.DB, userID, productID, orderID string, qty int) (*model.StockReservation, error)
	ReleaseForUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID string) (int64, error)
	ActiveReservedByOthers(ctx context.Context, tx *gorm.DB, productIDs []string, userID string) (map[string]int, error)
	ReapExpired(ctx context.Context) (int64, error)
}

type reservationService struct {
	repo    repository.ReservationRepository
	cfg     config.Provider
	metrics *metrics.MetricsCollector
	now     func() time.Time
}

func NewReservationService(repo repository.ReservationRepository, cfg config.Provider, m *metrics.MetricsCollector) ReservationService {
	return &reservationService{repo: repo, cfg: cfg, metrics: m, now: time.Now}
}

func (s *reservationService) ttl() time.Duration {
	if ttl := s.cfg.Current().Store.ReservationTTL; ttl > 0 {
		return ttl
	}
	return DefaultReservationTTL
}

// Reserve 创建预留，expiresAt 固定为创建时间 + TTL
func (s *reservationService) Reserve(ctx context.Context, tx *gorm.DB, userID, productID, orderID string, qty int) (*model.StockReservation, error) {
	if qty <= 0 {
		return nil, apperr.Validation("", "reservation quantity must be positive")
	}

	now := s.now()
	reservation := &model.StockReservation{
		UserID:    userID,
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  qty,
		ExpiresAt: now.Add(s.ttl()),
	}
	reservation.CreatedAt = now

	if err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
		return nil, apperr.Internal(err)
	}
	s.metrics.ReservationsCreated(1)
	return reservation, nil
}

// ReleaseForUser 删除用户的全部预留
func (s *reservationService) ReleaseForUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	n, err := s.repo.WithTx(tx).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// ReleaseForOrder 只删除与该订单关联的预留
func (s *reservationService) ReleaseForOrder(ctx context.Context, tx *gorm.DB, orderID string) (int64, error) {
	n, err := s.repo.WithTx(tx).DeleteByOrder(ctx, orderID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// ActiveReservedByOthers 过期预留在读取时即被排除，不依赖清理任务
func (s *reservationService) ActiveReservedByOthers(ctx context.Context, tx *gorm.DB, productIDs []string, userID string) (map[string]int, error) {
	reserved, err := s.repo.WithTx(tx).SumActiveByProduct(ctx, productIDs, userID, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return reserved, nil
}

func (s *reservationService) ReapExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.ReservationsReaped(n)
	return n, nil
}
