package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Severity 审计级别
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Action 审计动作
type Action string

const (
	ActionIDORAttempt          Action = "IDOR_ATTEMPT"
	ActionDuplicateReference   Action = "DUPLICATE_REFERENCE_ATTEMPT"
	ActionRechargeAutoApproved Action = "RECHARGE_AUTO_APPROVED"
	ActionOrderStatusChanged   Action = "ORDER_STATUS_CHANGED"
	ActionReservationsReleased Action = "RESERVATIONS_RELEASED"
	ActionSettingsRefreshed    Action = "SETTINGS_REFRESHED"
	ActionRechargeReviewed     Action = "RECHARGE_MANUALLY_APPROVED"
)

// ErrAuditImmutable 审计日志只允许追加
var ErrAuditImmutable = errors.New("audit log entries are append-only")

// AuditLogEntry 审计日志，只追加，不更新不删除
type AuditLogEntry struct {
	ID         string            `gorm:"primaryKey;type:uuid" json:"id" db:"id"`
	Action     Action            `gorm:"size:64;index;not null" json:"action" db:"action"`
	Severity   Severity          `gorm:"size:16;index;not null" json:"severity" db:"severity"`
	ActorID    string            `gorm:"size:64;index" json:"actorId" db:"actor_id"`
	TargetType string            `gorm:"size:64" json:"targetType" db:"target_type"`
	TargetID   string            `gorm:"size:64;index" json:"targetId" db:"target_id"`
	Details    datatypes.JSONMap `gorm:"type:jsonb" json:"details" db:"details"`
	IP         string            `gorm:"size:64" json:"ip" db:"ip"`
	UserAgent  string            `gorm:"size:512" json:"userAgent" db:"user_agent"`
	RequestID  string            `gorm:"size:64" json:"requestId" db:"request_id"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt" db:"created_at"`
}

func (AuditLogEntry) TableName() string {
	return "audit_log_entries"
}

// BeforeCreate 钩子：生成 UUID
func (e *AuditLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

func (e *AuditLogEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (e *AuditLogEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// AuditFilter 查询条件
type AuditFilter struct {
	Severity Severity
	Action   Action
	ActorID  string
	TargetID string
	Since    *time.Time
	Offset   int
	Limit    int
}
