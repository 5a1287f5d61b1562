package service

import (
	"context"
	"errors"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/pagomovil/repository"
	"storefront/pkg/apperr"
	"storefront/pkg/metrics"

	"go.uber.org/zap"
)

// 拦截层，仅用于审计与指标
const (
	LayerPrecheck   = "precheck"
	LayerConstraint = "constraint"
)

// DuplicateReferenceGuard 参考号防重放
// 应用层预检只是快速路径，数据库部分唯一索引才是真正的防线；两层对客户端返回完全相同的错误
type DuplicateReferenceGuard struct {
	repo    repository.VerificationRepository
	audit   auditService.AuditService
	metrics *metrics.MetricsCollector
	log     *zap.Logger
}

func NewDuplicateReferenceGuard(repo repository.VerificationRepository, audit auditService.AuditService, m *metrics.MetricsCollector, log *zap.Logger) *DuplicateReferenceGuard {
	return &DuplicateReferenceGuard{repo: repo, audit: audit, metrics: m, log: log}
}

// Precheck 参考号已被核验过时拒绝
func (g *DuplicateReferenceGuard) Precheck(ctx context.Context, reference, claimantID string) error {
	original, err := g.repo.FindVerifiedByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return g.reject(ctx, LayerPrecheck, reference, claimantID, original.UserID, original.ID)
}

// Persist 写入核验尝试，唯一索引冲突按重复参考号处理
func (g *DuplicateReferenceGuard) Persist(ctx context.Context, write func(ctx context.Context) error, reference, claimantID string) error {
	err := write(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrReferenceTaken) {
		return apperr.Internal(err)
	}

	var originalUser, originalID string
	if original, findErr := g.repo.FindVerifiedByReference(context.WithoutCancel(ctx), reference); findErr == nil {
		originalUser, originalID = original.UserID, original.ID
	}
	return g.reject(ctx, LayerConstraint, reference, claimantID, originalUser, originalID)
}

func (g *DuplicateReferenceGuard) reject(ctx context.Context, layer, reference, claimantID, originalUserID, originalVerificationID string) error {
	g.metrics.DuplicateReference(layer)
	g.metrics.Verification("duplicate")

	_ = g.audit.Record(ctx, auditService.Event{
		Action:     auditModel.ActionDuplicateReference,
		Severity:   auditModel.SeverityCritical,
		ActorID:    claimantID,
		TargetType: "pago_movil_reference",
		TargetID:   reference,
		Details: map[string]interface{}{
			"reference":                reference,
			"original_user_id":         originalUserID,
			"original_verification_id": originalVerificationID,
			"new_claimant_id":          claimantID,
			"same_user":                originalUserID != "" && originalUserID == claimantID,
			"layer":                    layer,
		},
	})
	return apperr.ErrDuplicateReference
}
