package service

import (
	"context"

	"storefront/internal/domain/audit/model"
	"storefront/internal/domain/audit/repository"
	"storefront/internal/pkg/reqctx"
	"storefront/pkg/utils"

	"go.uber.org/zap"
)

// Event 审计事件
type Event struct {
	Action     model.Action
	Severity   model.Severity
	ActorID    string
	TargetType string
	TargetID   string
	Details    map[string]interface{}
}

type AuditService interface {
	// Record 追加一条审计记录；请求来源从 ctx 中读取
	Record(ctx context.Context, ev Event) error
	List(ctx context.Context, filter model.AuditFilter, page utils.Pagination) (*utils.PageResult, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

func NewAuditService(repo repository.AuditRepository, log *zap.Logger) AuditService {
	return &auditService{repo: repo, log: log}
}

func (s *auditService) Record(ctx context.Context, ev Event) error {
	if ev.Severity == "" {
		ev.Severity = model.SeverityInfo
	}
	meta := reqctx.From(ctx)

	entry := &model.AuditLogEntry{
		Action:     ev.Action,
		Severity:   ev.Severity,
		ActorID:    ev.ActorID,
		TargetType: ev.TargetType,
		TargetID:   ev.TargetID,
		Details:    ev.Details,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
	}

	// 先写结构化日志，即使落库失败也能从日志还原事件
	fields := []zap.Field{
		zap.String("action", string(ev.Action)),
		zap.String("severity", string(ev.Severity)),
		zap.String("actor_id", ev.ActorID),
		zap.String("target_type", ev.TargetType),
		zap.String("target_id", ev.TargetID),
		zap.Any("details", ev.Details),
		zap.String("ip", meta.IP),
		zap.String("request_id", meta.RequestID),
	}
	switch ev.Severity {
	case model.SeverityCritical, model.SeverityError:
		s.log.Error("audit", fields...)
	case model.SeverityWarning:
		s.log.Warn("audit", fields...)
	default:
		s.log.Info("audit", fields...)
	}

	// 请求被取消时仍然要落库
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("persist audit entry failed", append(fields, zap.Error(err))...)
		return err
	}
	return nil
}

func (s *auditService) List(ctx context.Context, filter model.AuditFilter, page utils.Pagination) (*utils.PageResult, error) {
	filter.Offset, filter.Limit = page.GetPageOffset()
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return utils.NewPageResult(entries, total, page), nil
}
