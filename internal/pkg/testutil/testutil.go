// Package testutil 单元测试公共替身：sqlmock 数据库、内联事务、记录型通知与审计
package testutil

import (
	"context"
	"sync"
	"testing"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/pkg/notify"
	"storefront/pkg/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMockDB 返回基于 sqlmock 的 gorm 连接
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, m
}

// InlineTransactor 直接以 nil tx 调用 fn，仓储回落到默认连接
type InlineTransactor struct {
	mu    sync.Mutex
	calls int
}

func (t *InlineTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(nil)
}

func (t *InlineTransactor) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// RecordingDispatcher 记录所有通知
type RecordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, n notify.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
}

func (d *RecordingDispatcher) Sent() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.Notification, len(d.sent))
	copy(out, d.sent)
	return out
}

// Kinds 按发送顺序返回通知类型
func (d *RecordingDispatcher) Kinds() []notify.Kind {
	sent := d.Sent()
	kinds := make([]notify.Kind, 0, len(sent))
	for _, n := range sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// RecordingAudit 记录所有审计事件
type RecordingAudit struct {
	mu     sync.Mutex
	events []auditService.Event
}

func (a *RecordingAudit) Record(ctx context.Context, ev auditService.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *RecordingAudit) List(ctx context.Context, filter auditModel.AuditFilter, page utils.Pagination) (*utils.PageResult, error) {
	return utils.NewPageResult(a.Events(), int64(len(a.Events())), page), nil
}

func (a *RecordingAudit) Events() []auditService.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]auditService.Event, len(a.events))
	copy(out, a.events)
	return out
}

// BySeverity 过滤指定级别的事件
func (a *RecordingAudit) BySeverity(s auditModel.Severity) []auditService.Event {
	var out []auditService.Event
	for _, ev := range a.Events() {
		if ev.Severity == s {
			out = append(out, ev)
		}
	}
	return out
}
