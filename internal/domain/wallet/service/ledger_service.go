package service

import (
	"context"
	"errors"
	"time"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/wallet/model"
	"storefront/internal/domain/wallet/repository"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/notify"
	"storefront/pkg/apperr"
	"storefront/pkg/database"
	"storefront/pkg/metrics"
	"storefront/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultApprovalTolerance 自动审批允许的金额误差
var DefaultApprovalTolerance = decimal.RequireFromString("0.005")

// 审批结果原因
const (
	ReasonApproved         = "approved"
	ReasonAlreadyProcessed = "already_processed"
	ReasonAmountMismatch   = "verified_amount_below_tolerance"
)

// RechargeInput 充值申请
type RechargeInput struct {
	UserID        string
	AmountUSD     decimal.Decimal
	AmountBs      decimal.Decimal
	ExchangeRate  decimal.Decimal
	Reference     string
	PaymentMethod string
	PayerPhone    string
	BankCode      string
}

// AutoApproveInput 银行核验通过后的自动审批请求
type AutoApproveInput struct {
	TransactionID     string
	RequesterID       string
	VerifiedAmountBs  decimal.Decimal
	RequestedAmountBs decimal.Decimal
	VerificationID    string
	BankReference     string
}

// ApprovalResult 审批结果
type ApprovalResult struct {
	Approved      bool            `json:"approved"`
	Reason        string          `json:"reason"`
	TransactionID string          `json:"transactionId"`
	AmountUSD     decimal.Decimal `json:"amountUsd"`
}

// ManualApproveInput 客服人工审批
type ManualApproveInput struct {
	TransactionID string
	ReviewerID    string
	Note          string
}

// LedgerService 钱包余额与交易流水
type LedgerService interface {
	GetBalance(ctx context.Context, userID string) (*model.UserBalance, error)
	ListTransactions(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error)
	CreateRecharge(ctx context.Context, in RechargeInput) (*model.Transaction, error)
	DebitForPurchase(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal, orderID, orderNumber string) (*model.Transaction, error)
	AuthorizeTransaction(ctx context.Context, transactionID, requesterID string) error
	AutoApprove(ctx context.Context, in AutoApproveInput) (*ApprovalResult, error)
	ManualApprove(ctx context.Context, in ManualApproveInput) (*ApprovalResult, error)
}

type ledgerService struct {
	repo       repository.WalletRepository
	transactor database.Transactor
	audit      auditService.AuditService
	notifier   notify.Dispatcher
	cfg        config.Provider
	metrics    *metrics.MetricsCollector
	log        *zap.Logger
	now        func() time.Time
}

func NewLedgerService(
	repo repository.WalletRepository,
	transactor database.Transactor,
	audit auditService.AuditService,
	notifier notify.Dispatcher,
	cfg config.Provider,
	m *metrics.MetricsCollector,
	log *zap.Logger,
) LedgerService {
	return &ledgerService{
		repo:       repo,
		transactor: transactor,
		audit:      audit,
		notifier:   notifier,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// GetBalance 未开通钱包的用户返回零余额
func (s *ledgerService) GetBalance(ctx context.Context, userID string) (*model.UserBalance, error) {
	balance, err := s.repo.FindBalanceByUserID(ctx, userID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		return &model.UserBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return balance, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	balance, err := s.repo.FindBalanceByUserID(ctx, userID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		return utils.NewPageResult([]model.Transaction{}, 0, page), nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	list, total, err := s.repo.ListTransactions(ctx, balance.ID, offset, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return utils.NewPageResult(list, total, page), nil
}

// CreateRecharge 创建待审批的充值流水
func (s *ledgerService) CreateRecharge(ctx context.Context, in RechargeInput) (*model.Transaction, error) {
	if !in.AmountUSD.IsPositive() {
		return nil, apperr.Validation("", "amount must be positive")
	}
	if !in.AmountBs.IsPositive() {
		return nil, apperr.Validation("", "local amount must be positive")
	}

	var created *model.Transaction
	err := s.transactor.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		balance, err := repo.EnsureBalance(ctx, in.UserID)
		if err != nil {
			return err
		}

		created = &model.Transaction{
			BalanceID:     balance.ID,
			Type:          model.TransactionRecharge,
			Status:        model.StatusPending,
			Amount:        in.AmountUSD.Round(2),
			AmountLocal:   in.AmountBs.Round(2),
			Currency:      "USD",
			Reference:     in.Reference,
			PaymentMethod: in.PaymentMethod,
			Metadata: datatypes.NewJSONType(model.NewRechargeMetadata(model.RechargeRequest{
				RequestedAmountBs: in.AmountBs.Round(2),
				ExchangeRate:      in.ExchangeRate,
				PayerPhone:        in.PayerPhone,
				BankCode:          in.BankCode,
				RequestedAt:       s.now(),
			})),
		}
		return repo.CreateTransaction(ctx, created)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return created, nil
}

// DebitForPurchase 在调用方事务内扣款并记录 COMPLETED 的 PURCHASE 流水
func (s *ledgerService) DebitForPurchase(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal, orderID, orderNumber string) (*model.Transaction, error) {
	repo := s.repo.WithTx(tx)

	balance, err := repo.FindBalanceByUserID(ctx, userID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		return nil, insufficientBalance(decimal.Zero, amount)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := repo.Debit(ctx, balance.ID, amount); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, insufficientBalance(balance.Balance, amount)
		}
		return nil, apperr.Internal(err)
	}

	purchase := &model.Transaction{
		BalanceID:     balance.ID,
		Type:          model.TransactionPurchase,
		Status:        model.StatusCompleted,
		Amount:        amount,
		Currency:      "USD",
		Reference:     orderNumber,
		PaymentMethod: "WALLET",
		Metadata:      datatypes.NewJSONType(model.NewPurchaseMetadata(orderID, orderNumber)),
	}
	if err := repo.CreateTransaction(ctx, purchase); err != nil {
		return nil, apperr.Internal(err)
	}
	return purchase, nil
}

func insufficientBalance(available, required decimal.Decimal) error {
	return apperr.BusinessRule(apperr.CodeInsufficientBalance, "insufficient wallet balance").
		WithDetails(map[string]string{
			"available": available.StringFixed(2),
			"required":  required.StringFixed(2),
		})
}

func (s *ledgerService) tolerance() decimal.Decimal {
	if t := s.cfg.Current().Store.ApprovalTolerance; t.IsPositive() {
		return t
	}
	return DefaultApprovalTolerance
}

// loadOwned 加载交易并校验归属；越权访问写入 CRITICAL 审计后拒绝
func (s *ledgerService) loadOwned(ctx context.Context, transactionID, requesterID string) (*model.Transaction, *model.UserBalance, error) {
	t, err := s.repo.FindTransaction(ctx, transactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, nil, apperr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	balance, err := s.repo.FindBalanceByID(ctx, t.BalanceID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		return nil, nil, apperr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	if balance.UserID != requesterID {
		_ = s.audit.Record(ctx, auditService.Event{
			Action:     auditModel.ActionIDORAttempt,
			Severity:   auditModel.SeverityCritical,
			ActorID:    requesterID,
			TargetType: "wallet_transaction",
			TargetID:   t.ID,
			Details: map[string]interface{}{
				"owner_id":     balance.UserID,
				"requester_id": requesterID,
				"operation":    "recharge_approval",
			},
		})
		return nil, nil, apperr.ErrForbidden
	}
	return t, balance, nil
}

// AuthorizeTransaction 核验前确认交易属于请求者，越权时记录审计
func (s *ledgerService) AuthorizeTransaction(ctx context.Context, transactionID, requesterID string) error {
	_, _, err := s.loadOwned(ctx, transactionID, requesterID)
	return err
}

// AutoApprove 银行核验通过后自动审批充值
// verified >= requested * (1 - tolerance) 时入账，否则保持 PENDING 等待人工审核
func (s *ledgerService) AutoApprove(ctx context.Context, in AutoApproveInput) (*ApprovalResult, error) {
	t, balance, err := s.loadOwned(ctx, in.TransactionID, in.RequesterID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindForbidden {
			s.metrics.AutoApproval("forbidden")
		}
		return nil, err
	}
	if t.Type != model.TransactionRecharge {
		s.metrics.AutoApproval("wrong_type")
		return nil, apperr.Validation("", "only recharge transactions can be approved")
	}

	result := &ApprovalResult{TransactionID: t.ID, AmountUSD: t.Amount}
	if !t.IsPending() {
		result.Reason = ReasonAlreadyProcessed
		s.metrics.AutoApproval("noop")
		return result, nil
	}

	requested := t.AmountLocal
	if !requested.IsPositive() {
		requested = in.RequestedAmountBs
	}
	tolerance := s.tolerance()
	threshold := requested.Mul(decimal.NewFromInt(1).Sub(tolerance))
	if !in.VerifiedAmountBs.IsPositive() || in.VerifiedAmountBs.LessThan(threshold) {
		result.Reason = ReasonAmountMismatch
		s.metrics.AutoApproval("mismatch")
		s.log.Info("recharge left for manual review",
			zap.String("transaction_id", t.ID),
			zap.String("requested_bs", requested.String()),
			zap.String("verified_bs", in.VerifiedAmountBs.String()),
		)
		return result, nil
	}

	meta := t.Meta().WithAutoApproval(model.AutoApproval{
		VerificationID:    in.VerificationID,
		BankReference:     in.BankReference,
		VerifiedAmountBs:  in.VerifiedAmountBs,
		RequestedAmountBs: requested,
		Tolerance:         tolerance,
		ApprovedAt:        s.now(),
	})

	approved, err := s.complete(ctx, t, balance, meta)
	if err != nil {
		return nil, err
	}
	if !approved {
		// 并发审批已先完成
		result.Reason = ReasonAlreadyProcessed
		s.metrics.AutoApproval("noop")
		return result, nil
	}

	result.Approved = true
	result.Reason = ReasonApproved
	s.metrics.AutoApproval("approved")

	_ = s.audit.Record(ctx, auditService.Event{
		Action:     auditModel.ActionRechargeAutoApproved,
		Severity:   auditModel.SeverityInfo,
		ActorID:    in.RequesterID,
		TargetType: "wallet_transaction",
		TargetID:   t.ID,
		Details: map[string]interface{}{
			"amount_usd":         t.Amount.StringFixed(2),
			"requested_bs":       requested.StringFixed(2),
			"verified_bs":        in.VerifiedAmountBs.StringFixed(2),
			"verification_id":    in.VerificationID,
			"bank_reference":     in.BankReference,
			"approval_tolerance": tolerance.String(),
		},
	})
	s.notifyApproved(ctx, balance.UserID, t)
	return result, nil
}

// ManualApprove 客服确认到账后入账，不做归属校验
func (s *ledgerService) ManualApprove(ctx context.Context, in ManualApproveInput) (*ApprovalResult, error) {
	t, err := s.repo.FindTransaction(ctx, in.TransactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, apperr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if t.Type != model.TransactionRecharge {
		return nil, apperr.Validation("", "only recharge transactions can be approved")
	}

	balance, err := s.repo.FindBalanceByID(ctx, t.BalanceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	result := &ApprovalResult{TransactionID: t.ID, AmountUSD: t.Amount, Reason: ReasonAlreadyProcessed}
	if !t.IsPending() {
		return result, nil
	}

	meta := t.Meta().WithManualReview(model.ManualReview{
		ReviewerID: in.ReviewerID,
		Note:       in.Note,
		ReviewedAt: s.now(),
	})
	approved, err := s.complete(ctx, t, balance, meta)
	if err != nil || !approved {
		return result, err
	}

	result.Approved = true
	result.Reason = ReasonApproved
	_ = s.audit.Record(ctx, auditService.Event{
		Action:     auditModel.ActionRechargeReviewed,
		Severity:   auditModel.SeverityInfo,
		ActorID:    in.ReviewerID,
		TargetType: "wallet_transaction",
		TargetID:   t.ID,
		Details: map[string]interface{}{
			"owner_id":   balance.UserID,
			"amount_usd": t.Amount.StringFixed(2),
			"note":       in.Note,
		},
	})
	s.notifyApproved(ctx, balance.UserID, t)
	return result, nil
}

// complete 在一个事务内完成状态流转与入账；返回 false 表示已被其他请求处理
func (s *ledgerService) complete(ctx context.Context, t *model.Transaction, balance *model.UserBalance, meta model.Metadata) (bool, error) {
	approved := true
	err := s.transactor.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CompletePending(ctx, t.ID, meta); err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				approved = false
				return nil
			}
			return err
		}
		// 入账金额以交易记录上的 USD 金额为准
		return repo.Credit(ctx, balance.ID, t.Amount)
	})
	if err != nil {
		return false, apperr.Internal(err)
	}
	return approved, nil
}

func (s *ledgerService) notifyApproved(ctx context.Context, userID string, t *model.Transaction) {
	s.notifier.Dispatch(ctx, notify.Notification{
		Kind:   notify.KindRechargeApproved,
		UserID: userID,
		Email:  true,
		Data: map[string]string{
			"transactionId": t.ID,
			"amount":        t.Amount.StringFixed(2),
		},
		OccurredAt: s.now(),
	})
}
