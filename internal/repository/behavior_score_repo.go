package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// BehaviorScoreRepository 行为评分仓储
type BehaviorScoreRepository struct {
	db *gorm.DB
}

// NewBehaviorScoreRepository 创建行为评分仓储
func NewBehaviorScoreRepository(db *gorm.DB) *BehaviorScoreRepository {
	return &BehaviorScoreRepository{db: db}
}

// ReplaceForPeriod 整周期替换写入：同一 (owner, account, 窗口) 的旧评分先删后插。
// 重算因此是幂等替换而非合并；并发重算同一键需由上层串行化。
func (r *BehaviorScoreRepository) ReplaceForPeriod(ctx context.Context, ownerID, accountID, periodStart, periodEnd int64, scores []schema.BehaviorScore) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("owner_id = ? AND account_id = ? AND period_start = ? AND period_end = ?",
				ownerID, accountID, periodStart, periodEnd).
			Delete(&schema.BehaviorScore{}).Error; err != nil {
			return err
		}
		if len(scores) == 0 {
			return nil
		}
		return tx.CreateInBatches(scores, 100).Error
	})

	if err != nil {
		return fmt.Errorf("替换行为评分失败: %w", err)
	}
	return nil
}

// GetByAccountAndRange 查询客户在时间范围内的全部周期评分（按周期起点升序）
func (r *BehaviorScoreRepository) GetByAccountAndRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.BehaviorScore, error) {
	var scores []schema.BehaviorScore
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ? AND period_start >= ? AND period_end <= ?",
			ownerID, accountID, startTime, endTime).
		Order("period_start ASC").
		Find(&scores).Error

	if err != nil {
		return nil, fmt.Errorf("查询行为评分失败: %w", err)
	}

	return scores, nil
}

// GetForPeriod 查询某一具体周期的评分
func (r *BehaviorScoreRepository) GetForPeriod(ctx context.Context, ownerID, accountID, periodStart, periodEnd int64) ([]schema.BehaviorScore, error) {
	var scores []schema.BehaviorScore
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ? AND period_start = ? AND period_end = ?",
			ownerID, accountID, periodStart, periodEnd).
		Order("behavior ASC").
		Find(&scores).Error

	if err != nil {
		return nil, fmt.Errorf("查询周期行为评分失败: %w", err)
	}

	return scores, nil
}
