package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"gorm.io/gorm"
)

// AccountRepository 客户仓储
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建客户仓储
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 创建客户
func (r *AccountRepository) Create(ctx context.Context, account *schema.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID 按 ID 获取客户，未找到返回 nil
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*schema.Account, error) {
	var account schema.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}
	return &account, nil
}

// GetByIDs 按 ID 集合获取客户映射
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]schema.Account, error) {
	out := make(map[int64]schema.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var accounts []schema.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}

	for _, a := range accounts {
		out[a.ID] = a
	}
	return out, nil
}

// ListByOwner 获取归属某销售的全部客户
func (r *AccountRepository) ListByOwner(ctx context.Context, ownerID int64) ([]schema.Account, error) {
	var accounts []schema.Account
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("查询客户列表失败: %w", err)
	}
	return accounts, nil
}
