package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/pagomovil/model"
	"storefront/pkg/database"

	"gorm.io/gorm"
)

var (
	// ErrReferenceTaken 已核验的参考号再次写入 verificado = true
	ErrReferenceTaken = errors.New("reference already verified")
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("verification not found")
)

type VerificationRepository interface {
	Create(ctx context.Context, v *model.PagoMovilVerificacion) error
	FindVerifiedByReference(ctx context.Context, reference string) (*model.PagoMovilVerificacion, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.PagoMovilVerificacion, int64, error)
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// Create 写入核验尝试；部分唯一索引冲突转换为 ErrReferenceTaken
func (r *verificationRepository) Create(ctx context.Context, v *model.PagoMovilVerificacion) error {
	err := r.db.WithContext(ctx).Create(v).Error
	if err != nil && database.IsUniqueViolation(err) {
		if name := database.ConstraintName(err); name == "" || name == model.ReferenceIndex {
			return ErrReferenceTaken
		}
	}
	return err
}

func (r *verificationRepository) FindVerifiedByReference(ctx context.Context, reference string) (*model.PagoMovilVerificacion, error) {
	var v model.PagoMovilVerificacion
	err := r.db.WithContext(ctx).
		Where("referencia = ? AND verificado = ?", reference, true).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.PagoMovilVerificacion, int64, error) {
	var (
		list  []model.PagoMovilVerificacion
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.PagoMovilVerificacion{}).Where("user_id = ?", userID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
