package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"storefront/internal/domain/audit/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (AuditRepository, *gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewAuditRepository(gdb, sqlx.NewDb(sqlDB, "postgres")), gdb, mock
}

func TestCreate(t *testing.T) {
	repo, _, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "audit_log_entries"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &model.AuditLogEntry{
		Action:   model.ActionDuplicateReference,
		Severity: model.SeverityCritical,
		ActorID:  "user-2",
		Details:  map[string]interface{}{"reference": "12345678"},
	}
	err := repo.Create(context.Background(), entry)

	assert.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntriesCannotBeMutated(t *testing.T) {
	_, gdb, mock := newMockRepository(t)

	entry := &model.AuditLogEntry{ID: "3f1c1e0e-0000-4000-8000-000000000001", Action: model.ActionIDORAttempt}

	err := gdb.Model(entry).Update("severity", model.SeverityInfo).Error
	assert.ErrorIs(t, err, model.ErrAuditImmutable)

	err = gdb.Delete(entry).Error
	assert.ErrorIs(t, err, model.ErrAuditImmutable)

	// 钩子拒绝后不应有任何 SQL 发出
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, _, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM audit_log_entries WHERE severity = $1 AND actor_id = $2`)).
		WithArgs(model.SeverityCritical, "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_log_entries WHERE severity = $1 AND actor_id = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0`)).
		WithArgs(model.SeverityCritical, "user-2").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "action", "severity", "actor_id", "target_type", "target_id",
			"details", "ip", "user_agent", "request_id", "created_at",
		}).AddRow(
			"a1", "DUPLICATE_REFERENCE_ATTEMPT", "CRITICAL", "user-2", "pago_movil_verificacion", "12345678",
			[]byte(`{"originalUserId":"user-1"}`), "10.0.0.1", "ua", "req-9", now,
		))

	entries, total, err := repo.List(context.Background(), model.AuditFilter{
		Severity: model.SeverityCritical,
		ActorID:  "user-2",
		Limit:    20,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionDuplicateReference, entries[0].Action)
	assert.Equal(t, "user-1", entries[0].Details["originalUserId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
