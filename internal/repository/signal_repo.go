package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// SignalRepository 辅导信号仓储
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository 创建信号仓储
func NewSignalRepository(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// BatchInsert 批量插入信号（事务包裹）
func (r *SignalRepository) BatchInsert(ctx context.Context, signals []schema.CoachingSignal) error {
	if len(signals) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(signals, 100).Error
	})
	if err != nil {
		slog.Error("批量插入信号失败", "count", len(signals), "error", err)
		return fmt.Errorf("批量插入信号失败: %w", err)
	}
	return nil
}

// ListByOwner 按归属查询信号，unresolvedOnly 为 true 时只看未消解的
func (r *SignalRepository) ListByOwner(ctx context.Context, ownerID int64, unresolvedOnly bool, limit int) ([]schema.CoachingSignal, error) {
	query := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var signals []schema.CoachingSignal
	if err := query.Find(&signals).Error; err != nil {
		return nil, fmt.Errorf("查询信号失败: %w", err)
	}
	return signals, nil
}

// ListByBatch 查询同一次检测运行产生的全部信号
func (r *SignalRepository) ListByBatch(ctx context.Context, batchID string) ([]schema.CoachingSignal, error) {
	var signals []schema.CoachingSignal
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&signals).Error
	if err != nil {
		return nil, fmt.Errorf("查询批次信号失败: %w", err)
	}
	return signals, nil
}

// Resolve 人工消解信号
func (r *SignalRepository) Resolve(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&schema.CoachingSignal{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		return fmt.Errorf("消解信号失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
