package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// CompetitorRepository 竞品信号仓储（外部采集结果的落地与查询）
type CompetitorRepository struct {
	db *gorm.DB
}

// NewCompetitorRepository 创建竞品信号仓储
func NewCompetitorRepository(db *gorm.DB) *CompetitorRepository {
	return &CompetitorRepository{db: db}
}

// BatchInsert 批量插入竞品信号
func (r *CompetitorRepository) BatchInsert(ctx context.Context, signals []schema.CompetitorSignal) error {
	if len(signals) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(signals, 100).Error
	})
	if err != nil {
		return fmt.Errorf("批量插入竞品信号失败: %w", err)
	}
	return nil
}

// GetByAccountsAndRange 查询一组客户在时间范围内的竞品信号
func (r *CompetitorRepository) GetByAccountsAndRange(ctx context.Context, accountIDs []int64, startTime, endTime int64) ([]schema.CompetitorSignal, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	var signals []schema.CompetitorSignal
	err := r.db.WithContext(ctx).
		Where("account_id IN ? AND detected_at >= ? AND detected_at <= ?", accountIDs, startTime, endTime).
		Order("detected_at ASC").
		Find(&signals).Error

	if err != nil {
		return nil, fmt.Errorf("查询竞品信号失败: %w", err)
	}

	return signals, nil
}
