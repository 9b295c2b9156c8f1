package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// ActivityRepository 销售活动仓储
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建活动仓储
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 创建单条活动
func (r *ActivityRepository) Create(ctx context.Context, activity *schema.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// BatchInsert 批量插入活动（事务包裹）
func (r *ActivityRepository) BatchInsert(ctx context.Context, activities []schema.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(activities, 100).Error
	})

	if err != nil {
		slog.Error("批量插入活动失败", "count", len(activities), "error", err)
		return fmt.Errorf("批量插入活动失败: %w", err)
	}

	slog.Debug("批量插入活动成功", "count", len(activities), "duration", time.Since(start))
	return nil
}

// GetByOwnerAndTimeRange 按归属与时间范围查询活动（全客户）
func (r *ActivityRepository) GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Activity, error) {
	var activities []schema.Activity
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND performed_at >= ? AND performed_at <= ?", ownerID, startTime, endTime).
		Order("performed_at ASC").
		Find(&activities).Error

	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}

	return activities, nil
}

// GetByAccountAndTimeRange 按客户与时间范围查询活动
func (r *ActivityRepository) GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Activity, error) {
	var activities []schema.Activity
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND account_id = ? AND performed_at >= ? AND performed_at <= ?",
			ownerID, accountID, startTime, endTime).
		Order("performed_at ASC").
		Find(&activities).Error

	if err != nil {
		return nil, fmt.Errorf("查询客户活动失败: %w", err)
	}

	return activities, nil
}

// DistinctAccountIDs 窗口内有活动的客户 ID 去重列表
func (r *ActivityRepository) DistinctAccountIDs(ctx context.Context, ownerID, startTime, endTime int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&schema.Activity{}).
		Distinct("account_id").
		Where("owner_id = ? AND performed_at >= ? AND performed_at <= ?", ownerID, startTime, endTime).
		Pluck("account_id", &ids).Error

	if err != nil {
		return nil, fmt.Errorf("查询活动客户失败: %w", err)
	}

	return ids, nil
}
