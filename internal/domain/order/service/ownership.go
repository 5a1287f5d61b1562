package service

import (
	"context"
	"errors"

	"storefront/internal/domain/order/repository"
	"storefront/pkg/apperr"
)

// OwnershipService 供支付核验校验订单归属
type OwnershipService struct {
	repo repository.OrderRepository
}

func NewOwnershipService(repo repository.OrderRepository) *OwnershipService {
	return &OwnershipService{repo: repo}
}

// OrderOwner 返回订单所属用户
func (s *OwnershipService) OrderOwner(ctx context.Context, orderID string) (string, error) {
	owner, err := s.repo.OwnerOf(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return "", apperr.NotFound("order not found")
	}
	if err != nil {
		return "", apperr.Internal(err)
	}
	return owner, nil
}
