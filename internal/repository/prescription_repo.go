package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// PrescriptionRepository 处方仓储
type PrescriptionRepository struct {
	db *gorm.DB
}

// NewPrescriptionRepository 创建处方仓储
func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create 创建处方记录
func (r *PrescriptionRepository) Create(ctx context.Context, p *schema.Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// BatchInsert 批量插入处方记录
func (r *PrescriptionRepository) BatchInsert(ctx context.Context, ps []schema.Prescription) error {
	if len(ps) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(ps, 100).Error
	})
	if err != nil {
		return fmt.Errorf("批量插入处方失败: %w", err)
	}
	return nil
}

// GetByOwnerAndTimeRange 按归属与时间范围查询处方（全客户）
func (r *PrescriptionRepository) GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Prescription, error) {
	var ps []schema.Prescription
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND prescribed_at >= ? AND prescribed_at <= ?", ownerID, startTime, endTime).
		Order("prescribed_at ASC").
		Find(&ps).Error

	if err != nil {
		return nil, fmt.Errorf("查询处方失败: %w", err)
	}

	return ps, nil
}

// GetByAccountAndTimeRange 按客户与时间范围查询处方
func (r *PrescriptionRepository) GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Prescription, error) {
	var ps []schema.Prescription
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ? AND prescribed_at >= ? AND prescribed_at <= ?",
			ownerID, accountID, startTime, endTime).
		Order("prescribed_at ASC").
		Find(&ps).Error

	if err != nil {
		return nil, fmt.Errorf("查询客户处方失败: %w", err)
	}

	return ps, nil
}
