package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/wallet/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrBalanceNotFound 用户尚未开通钱包
	ErrBalanceNotFound = errors.New("wallet balance not found")
	// ErrTransactionNotFound 交易不存在
	ErrTransactionNotFound = errors.New("wallet transaction not found")
	// ErrInsufficientBalance 条件扣款未命中任何行
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrNotPending 交易已不是 PENDING
	ErrNotPending = errors.New("transaction is not pending")
)

// WalletRepository 余额修改一律使用带条件的单条 UPDATE
type WalletRepository interface {
	WithTx(tx *gorm.DB) WalletRepository
	FindBalanceByUserID(ctx context.Context, userID string) (*model.UserBalance, error)
	FindBalanceByID(ctx context.Context, id string) (*model.UserBalance, error)
	EnsureBalance(ctx context.Context, userID string) (*model.UserBalance, error)
	Debit(ctx context.Context, balanceID string, amount decimal.Decimal) error
	Credit(ctx context.Context, balanceID string, amount decimal.Decimal) error
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	FindTransaction(ctx context.Context, id string) (*model.Transaction, error)
	CompletePending(ctx context.Context, id string, meta model.Metadata) error
	ListTransactions(ctx context.Context, balanceID string, offset, limit int) ([]model.Transaction, int64, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) WithTx(tx *gorm.DB) WalletRepository {
	if tx == nil {
		return r
	}
	return &walletRepository{db: tx}
}

func (r *walletRepository) FindBalanceByUserID(ctx context.Context, userID string) (*model.UserBalance, error) {
	var balance model.UserBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *walletRepository) FindBalanceByID(ctx context.Context, id string) (*model.UserBalance, error) {
	var balance model.UserBalance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// EnsureBalance 首次使用时创建钱包，并发创建由 user_id 唯一索引兜底
func (r *walletRepository) EnsureBalance(ctx context.Context, userID string) (*model.UserBalance, error) {
	balance := &model.UserBalance{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(balance).Error
	if err != nil {
		return nil, err
	}
	return r.FindBalanceByUserID(ctx, userID)
}

// Debit 扣款：余额不足时不修改任何行
func (r *walletRepository) Debit(ctx context.Context, balanceID string, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&model.UserBalance{}).
		Where("id = ? AND balance >= ?", balanceID, amount).
		UpdateColumns(map[string]interface{}{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_spent": gorm.Expr("total_spent + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Credit 充值入账
func (r *walletRepository) Credit(ctx context.Context, balanceID string, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&model.UserBalance{}).
		Where("id = ?", balanceID).
		UpdateColumns(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"total_recharges": gorm.Expr("total_recharges + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *walletRepository) FindTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CompletePending PENDING -> COMPLETED，重复审批不会命中任何行
func (r *walletRepository) CompletePending(ctx context.Context, id string, meta model.Metadata) error {
	result := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":   model.StatusCompleted,
			"metadata": datatypes.NewJSONType(meta),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, balanceID string, offset, limit int) ([]model.Transaction, int64, error) {
	var (
		list  []model.Transaction
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("balance_id = ?", balanceID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
