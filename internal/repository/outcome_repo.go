package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// OutcomeRepository 成果指标仓储
type OutcomeRepository struct {
	db *gorm.DB
}

// NewOutcomeRepository 创建成果指标仓储
func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Replace 删除后插入：同一 (owner, period_type, 窗口, account) 键的重算不累积重复行。
func (r *OutcomeRepository) Replace(ctx context.Context, result *schema.OutcomeResult) error {
	if result == nil {
		return fmt.Errorf("result 不能为空")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("owner_id = ? AND period_type = ? AND period_start = ? AND period_end = ? AND account_id = ?",
				result.OwnerID, result.PeriodType, result.PeriodStart, result.PeriodEnd, result.AccountID).
			Delete(&schema.OutcomeResult{}).Error; err != nil {
			return err
		}
		return tx.Create(result).Error
	})

	if err != nil {
		return fmt.Errorf("替换成果指标失败: %w", err)
	}

	slog.Debug("写入成果指标",
		"owner", result.OwnerID, "account", result.AccountID,
		"period_type", result.PeriodType, "period_start", result.PeriodStart)
	return nil
}

// GetByKey 按唯一键查询，未找到返回 nil
func (r *OutcomeRepository) GetByKey(ctx context.Context, ownerID int64, periodType schema.PeriodType, periodStart, periodEnd, accountID int64) (*schema.OutcomeResult, error) {
	var result schema.OutcomeResult
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND period_type = ? AND period_start = ? AND period_end = ? AND account_id = ?",
			ownerID, periodType, periodStart, periodEnd, accountID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询成果指标失败: %w", err)
	}
	return &result, nil
}

// GetSeries 查询某客户某周期类型在时间范围内的指标序列（按周期起点升序）
func (r *OutcomeRepository) GetSeries(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, startTime, endTime int64) ([]schema.OutcomeResult, error) {
	var results []schema.OutcomeResult
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ? AND period_type = ? AND period_start >= ? AND period_end <= ?",
			ownerID, accountID, periodType, startTime, endTime).
		Order("period_start ASC").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("查询指标序列失败: %w", err)
	}

	return results, nil
}

// CountByKey 统计同一键下的行数（幂等性自检用）
func (r *OutcomeRepository) CountByKey(ctx context.Context, ownerID int64, periodType schema.PeriodType, periodStart, periodEnd, accountID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.OutcomeResult{}).
		Where("owner_id = ? AND period_type = ? AND period_start = ? AND period_end = ? AND account_id = ?",
			ownerID, periodType, periodStart, periodEnd, accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计成果指标失败: %w", err)
	}
	return count, nil
}
