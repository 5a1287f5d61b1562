package service

import (
	"context"
	"errors"

	"storefront/internal/domain/inventory/model"
	"storefront/internal/domain/inventory/repository"
	"storefront/pkg/apperr"

	"gorm.io/gorm"
)

// StockService 商品库存的三条修改路径：钱包购买、延迟支付确认、取消回补
type StockService interface {
	LoadProducts(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Product, error)
	DecrementForPurchase(ctx context.Context, tx *gorm.DB, productID string, qty int) error
	CommitDeferred(ctx context.Context, tx *gorm.DB, productID string, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, productID string, qty int) error
}

type stockService struct {
	repo repository.ProductRepository
}

func NewStockService(repo repository.ProductRepository) StockService {
	return &stockService{repo: repo}
}

func (s *stockService) LoadProducts(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Product, error) {
	products, err := s.repo.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	result := make(map[string]*model.Product, len(products))
	for i := range products {
		result[products[i].ID] = &products[i]
	}
	return result, nil
}

func (s *stockService) DecrementForPurchase(ctx context.Context, tx *gorm.DB, productID string, qty int) error {
	err := s.repo.WithTx(tx).DecrementStock(ctx, productID, qty)
	if errors.Is(err, repository.ErrInsufficientStock) {
		// 校验之后被并发订单抢走了库存
		return apperr.BusinessRule(apperr.CodeInsufficientStock, "insufficient stock").
			WithDetails([]model.StockViolation{{
				ProductID: productID,
				Requested: qty,
				Reason:    model.ReasonInsufficientStock,
			}})
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *stockService) CommitDeferred(ctx context.Context, tx *gorm.DB, productID string, qty int) error {
	if err := s.repo.WithTx(tx).DecrementStockClamped(ctx, productID, qty); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *stockService) Restore(ctx context.Context, tx *gorm.DB, productID string, qty int) error {
	if err := s.repo.WithTx(tx).IncrementStock(ctx, productID, qty); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
