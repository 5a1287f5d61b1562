package repository

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain/audit/model"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// AuditRepository 只暴露追加与查询，没有更新/删除
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditLogEntry) error
	List(ctx context.Context, filter model.AuditFilter) ([]model.AuditLogEntry, int64, error)
}

type auditRepository struct {
	db     *gorm.DB
	reader *sqlx.DB
}

func NewAuditRepository(db *gorm.DB, reader *sqlx.DB) AuditRepository {
	return &auditRepository{db: db, reader: reader}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

const auditColumns = `id, action, severity, actor_id, target_type, target_id, details, ip, user_agent, request_id, created_at`

// List 后台查询走 sqlx，按时间倒序
func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]model.AuditLogEntry, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := r.reader.Rebind("SELECT COUNT(*) FROM audit_log_entries" + where)
	if err := r.reader.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	listQuery := r.reader.Rebind(fmt.Sprintf(
		"SELECT %s FROM audit_log_entries%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		auditColumns, where, filter.Limit, filter.Offset,
	))
	entries := []model.AuditLogEntry{}
	if err := r.reader.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	return entries, total, nil
}
