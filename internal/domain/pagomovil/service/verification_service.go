package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/pagomovil/bank"
	"storefront/internal/domain/pagomovil/model"
	"storefront/internal/domain/pagomovil/repository"
	walletService "storefront/internal/domain/wallet/service"
	"storefront/internal/pkg/config"
	"storefront/pkg/apperr"
	"storefront/pkg/metrics"
	"storefront/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	cedulaPattern    = regexp.MustCompile(`^[VE]?\d{6,9}$`)
	phonePattern     = regexp.MustCompile(`^(\+?58|0)?4(12|14|16|22|24|26)\d{7}$`)
	referencePattern = regexp.MustCompile(`^\d{4,8}$`)
	bankCodePattern  = regexp.MustCompile(`^\d{4}$`)
	phoneNoise       = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	cedulaNoise      = strings.NewReplacer(" ", "", "-", "", ".", "")
)

// 返回给用户的提示
const (
	MsgVerified        = "Payment verified"
	MsgRecharged       = "Payment verified and wallet recharged"
	MsgPendingApproval = "Payment verified, the recharge will be approved after manual review"
	MsgNotVerified     = "Payment could not be verified with the bank"
	MsgManualReview    = "Bank verification is temporarily unavailable, your payment will be reviewed manually"
)

// Ledger 充值审批
type Ledger interface {
	AuthorizeTransaction(ctx context.Context, transactionID, requesterID string) error
	AutoApprove(ctx context.Context, in walletService.AutoApproveInput) (*walletService.ApprovalResult, error)
}

// OrderOwner 查询订单归属，订单不存在时返回 NotFound
type OrderOwner interface {
	OrderOwner(ctx context.Context, orderID string) (string, error)
}

// VerifyInput 核验请求
type VerifyInput struct {
	UserID        string
	PayerPhone    string
	PayerID       string
	BankCode      string
	Reference     string
	PaymentDate   string // YYYY-MM-DD
	Amount        decimal.Decimal
	Context       model.Context
	TransactionID string
	OrderID       string
}

// VerifyResult 核验结果
type VerifyResult struct {
	Verified       bool             `json:"verified"`
	AutoApproved   *bool            `json:"autoApproved,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Message        string           `json:"message"`
	VerificationID string           `json:"verificationId"`
}

// FieldError 字段校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type VerificationService interface {
	Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error)
	ListMine(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error)
}

type verificationService struct {
	repo    repository.VerificationRepository
	guard   *DuplicateReferenceGuard
	bank    bank.Verifier
	ledger  Ledger
	orders  OrderOwner
	audit   auditService.AuditService
	cfg     config.Provider
	metrics *metrics.MetricsCollector
	log     *zap.Logger
	now     func() time.Time
}

func NewVerificationService(
	repo repository.VerificationRepository,
	guard *DuplicateReferenceGuard,
	verifier bank.Verifier,
	ledger Ledger,
	orders OrderOwner,
	audit auditService.AuditService,
	cfg config.Provider,
	m *metrics.MetricsCollector,
	log *zap.Logger,
) VerificationService {
	return &verificationService{
		repo:    repo,
		guard:   guard,
		bank:    verifier,
		ledger:  ledger,
		orders:  orders,
		audit:   audit,
		cfg:     cfg,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Verify 核验流程：校验 -> 归属检查 -> 预检 -> 调用银行 -> 落库 -> 自动审批
func (s *verificationService) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	in = normalize(in)
	paymentDate, err := s.validate(in)
	if err != nil {
		s.metrics.Verification("invalid")
		return nil, err
	}

	if err := s.authorizeLinks(ctx, in); err != nil {
		return nil, err
	}

	if err := s.guard.Precheck(ctx, in.Reference, in.UserID); err != nil {
		return nil, err
	}

	// 银行调用不在任何数据库事务内
	bankResult, bankErr := s.bank.Verify(ctx, bank.Request{
		PayerPhone:  in.PayerPhone,
		PayerID:     in.PayerID,
		BankCode:    in.BankCode,
		Reference:   in.Reference,
		PaymentDate: paymentDate,
		Amount:      in.Amount,
	})
	if bankErr != nil {
		bankResult = &bank.Result{Code: model.CodeBankUnavailable, Message: bankErr.Error()}
	}

	attempt := &model.PagoMovilVerificacion{
		UserID:          in.UserID,
		PayerPhone:      in.PayerPhone,
		PayerID:         in.PayerID,
		BankCode:        in.BankCode,
		Reference:       in.Reference,
		PaymentDate:     paymentDate,
		RequestedAmount: in.Amount,
		VerifiedAmount:  bankResult.Amount,
		ResponseCode:    bankResult.Code,
		ResponseMessage: truncate(bankResult.Message, 255),
		Verified:        bankResult.Verified,
		Context:         in.Context,
		TransactionID:   optional(in.TransactionID),
		OrderID:         optional(in.OrderID),
	}
	if len(bankResult.Raw) > 0 {
		attempt.RawResponse = datatypes.JSON(bankResult.Raw)
	}

	// 请求取消时也要保留核验记录
	persistCtx := context.WithoutCancel(ctx)
	if err := s.guard.Persist(persistCtx, func(ctx context.Context) error {
		return s.repo.Create(ctx, attempt)
	}, in.Reference, in.UserID); err != nil {
		return nil, err
	}

	result := &VerifyResult{Verified: attempt.Verified, VerificationID: attempt.ID}
	switch {
	case bankErr != nil:
		s.metrics.Verification("bank_unavailable")
		result.Message = MsgManualReview
		return result, nil
	case !attempt.Verified:
		s.metrics.Verification("not_verified")
		result.Message = MsgNotVerified
		return result, nil
	}

	s.metrics.Verification("verified")
	result.Message = MsgVerified
	recharge := in.Context == model.ContextRecharge && in.TransactionID != ""

	// 银行未返回金额时不能用用户申报的金额代替，充值转人工审核
	verifiedAmount := bankResult.Amount
	if !verifiedAmount.IsPositive() {
		s.log.Warn("bank verified transfer without amount",
			zap.String("verification_id", attempt.ID),
			zap.String("reference", in.Reference),
		)
		if recharge {
			approved := false
			result.AutoApproved = &approved
			result.Message = MsgPendingApproval
		}
		return result, nil
	}
	result.Amount = &verifiedAmount

	if recharge {
		approved, err := s.autoApprove(persistCtx, in, attempt, verifiedAmount)
		if err != nil {
			return nil, err
		}
		result.AutoApproved = &approved
		if approved {
			result.Message = MsgRecharged
		} else {
			result.Message = MsgPendingApproval
		}
	}
	return result, nil
}

func (s *verificationService) autoApprove(ctx context.Context, in VerifyInput, attempt *model.PagoMovilVerificacion, verified decimal.Decimal) (bool, error) {
	approval, err := s.ledger.AutoApprove(ctx, walletService.AutoApproveInput{
		TransactionID:     in.TransactionID,
		RequesterID:       in.UserID,
		VerifiedAmountBs:  verified,
		RequestedAmountBs: in.Amount,
		VerificationID:    attempt.ID,
		BankReference:     in.Reference,
	})
	if err == nil {
		return approval.Approved, nil
	}

	switch apperr.KindOf(err) {
	case apperr.KindForbidden, apperr.KindNotFound:
		return false, err
	}
	// 转账已核验并落库，审批失败留给人工处理
	s.log.Error("auto approval failed",
		zap.String("transaction_id", in.TransactionID),
		zap.String("verification_id", attempt.ID),
		zap.Error(err),
	)
	return false, nil
}

// authorizeLinks 关联的订单或充值交易必须属于付款人
func (s *verificationService) authorizeLinks(ctx context.Context, in VerifyInput) error {
	if in.OrderID != "" {
		owner, err := s.orders.OrderOwner(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if owner != in.UserID {
			_ = s.audit.Record(ctx, auditService.Event{
				Action:     auditModel.ActionIDORAttempt,
				Severity:   auditModel.SeverityCritical,
				ActorID:    in.UserID,
				TargetType: "order",
				TargetID:   in.OrderID,
				Details: map[string]interface{}{
					"owner_id":     owner,
					"requester_id": in.UserID,
					"operation":    "pago_movil_verification",
					"reference":    in.Reference,
				},
			})
			return apperr.ErrForbidden
		}
	}
	if in.Context == model.ContextRecharge && in.TransactionID != "" {
		return s.ledger.AuthorizeTransaction(ctx, in.TransactionID, in.UserID)
	}
	return nil
}

func (s *verificationService) validate(in VerifyInput) (time.Time, error) {
	var (
		problems []FieldError
		date     time.Time
	)
	add := func(field, msg string) {
		problems = append(problems, FieldError{Field: field, Message: msg})
	}

	if !cedulaPattern.MatchString(in.PayerID) {
		add("cedulaPagador", "must be a V or E cedula with 6 to 9 digits")
	}
	if !phonePattern.MatchString(in.PayerPhone) {
		add("telefonoPagador", "must be a Venezuelan mobile number")
	}
	if !referencePattern.MatchString(in.Reference) {
		add("referencia", "must have 4 to 8 digits")
	}
	if !bankCodePattern.MatchString(in.BankCode) {
		add("bancoOrigen", "must be a 4 digit bank code")
	}

	store := s.cfg.Current().Store
	maxAmount := store.MaxPaymentAmountBs
	if !maxAmount.IsPositive() {
		maxAmount = decimal.NewFromInt(3_000_000)
	}
	if !in.Amount.IsPositive() || in.Amount.GreaterThan(maxAmount) {
		add("importe", "must be greater than 0 and at most "+maxAmount.String())
	}

	if !in.Context.Valid() {
		add("contexto", "must be RECHARGE, ORDER or GENERAL")
	}

	parsed, err := time.Parse("2006-01-02", in.PaymentDate)
	if err != nil {
		add("fechaPago", "must be a date in YYYY-MM-DD format")
	} else {
		now := s.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		maxAge := store.PaymentMaxAgeDays
		if maxAge <= 0 {
			maxAge = 30
		}
		switch {
		case parsed.After(today):
			add("fechaPago", "cannot be in the future")
		case parsed.Before(today.AddDate(0, 0, -maxAge)):
			add("fechaPago", "is too old to be verified")
		}
		date = parsed
	}

	if len(problems) > 0 {
		return time.Time{}, apperr.Validation("", "invalid payment data").WithDetails(problems)
	}
	return date, nil
}

func (s *verificationService) ListMine(ctx context.Context, userID string, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	list, total, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return utils.NewPageResult(list, total, page), nil
}

func normalize(in VerifyInput) VerifyInput {
	in.PayerPhone = phoneNoise.Replace(strings.TrimSpace(in.PayerPhone))
	in.PayerID = strings.ToUpper(cedulaNoise.Replace(strings.TrimSpace(in.PayerID)))
	in.Reference = strings.TrimSpace(in.Reference)
	in.BankCode = strings.TrimSpace(in.BankCode)
	in.PaymentDate = strings.TrimSpace(in.PaymentDate)
	in.Context = model.Context(strings.ToUpper(strings.TrimSpace(string(in.Context))))
	return in
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
