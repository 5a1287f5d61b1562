package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/audit/model"
	"storefront/internal/pkg/reqctx"
	"storefront/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *model.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, filter model.AuditFilter) ([]model.AuditLogEntry, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.AuditLogEntry), args.Get(1).(int64), args.Error(2)
}

func TestRecord(t *testing.T) {
	t.Run("Captures request metadata", func(t *testing.T) {
		repo := new(MockAuditRepository)
		svc := NewAuditService(repo, zap.NewNop())

		ctx := reqctx.With(context.Background(), reqctx.Meta{
			RequestID: "req-1",
			IP:        "10.0.0.7",
			UserAgent: "curl/8",
		})

		repo.On("Create", mock.Anything, mock.MatchedBy(func(e *model.AuditLogEntry) bool {
			return e.Action == model.ActionIDORAttempt &&
				e.Severity == model.SeverityCritical &&
				e.ActorID == "user-b" &&
				e.TargetID == "txn-1" &&
				e.IP == "10.0.0.7" &&
				e.RequestID == "req-1" &&
				e.Details["ownerId"] == "user-a"
		})).Return(nil).Once()

		err := svc.Record(ctx, Event{
			Action:     model.ActionIDORAttempt,
			Severity:   model.SeverityCritical,
			ActorID:    "user-b",
			TargetType: "transaction",
			TargetID:   "txn-1",
			Details:    map[string]interface{}{"ownerId": "user-a", "requesterId": "user-b"},
		})

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("Defaults severity to INFO", func(t *testing.T) {
		repo := new(MockAuditRepository)
		svc := NewAuditService(repo, zap.NewNop())

		repo.On("Create", mock.Anything, mock.MatchedBy(func(e *model.AuditLogEntry) bool {
			return e.Severity == model.SeverityInfo
		})).Return(nil).Once()

		assert.NoError(t, svc.Record(context.Background(), Event{Action: model.ActionSettingsRefreshed}))
		repo.AssertExpectations(t)
	})

	t.Run("Persists even when the request context is cancelled", func(t *testing.T) {
		repo := new(MockAuditRepository)
		svc := NewAuditService(repo, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		repo.On("Create", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), mock.Anything).Return(nil).Once()

		assert.NoError(t, svc.Record(ctx, Event{Action: model.ActionDuplicateReference, Severity: model.SeverityCritical}))
		repo.AssertExpectations(t)
	})

	t.Run("Returns persistence errors", func(t *testing.T) {
		repo := new(MockAuditRepository)
		svc := NewAuditService(repo, zap.NewNop())

		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		err := svc.Record(context.Background(), Event{Action: model.ActionIDORAttempt, Severity: model.SeverityCritical})
		assert.Error(t, err)
	})
}

func TestList(t *testing.T) {
	repo := new(MockAuditRepository)
	svc := NewAuditService(repo, zap.NewNop())

	entries := []model.AuditLogEntry{{ID: "a1", Action: model.ActionIDORAttempt}}
	repo.On("List", mock.Anything, model.AuditFilter{Severity: model.SeverityCritical, Offset: 20, Limit: 20}).
		Return(entries, int64(21), nil).Once()

	result, err := svc.List(context.Background(), model.AuditFilter{Severity: model.SeverityCritical}, utils.Pagination{Page: 2, Limit: 20})

	assert.NoError(t, err)
	assert.Equal(t, int64(21), result.Total)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, entries, result.List)
	repo.AssertExpectations(t)
}
