package schema

import "time"

// Prescription 处方记录
// 与活动相互独立的生命周期，仅通过 RelatedActivityID 弱关联（非归属关系）。
type Prescription struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID           int64     `gorm:"index;not null" json:"owner_id"`
	AccountID         int64     `gorm:"index;not null" json:"account_id"`
	ContactID         int64     `gorm:"index" json:"contact_id"` // 0 表示未指定
	Product           string    `gorm:"size:255" json:"product"`
	Quantity          float64   `gorm:"default:0" json:"quantity"` // ≥ 0
	Price             float64   `gorm:"default:0" json:"price"`    // ≥ 0
	PrescribedAt      int64     `gorm:"index;not null" json:"prescribed_at"` // Unix 毫秒
	RelatedActivityID int64     `gorm:"index" json:"related_activity_id"`    // 0 表示无关联活动
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Prescription) TableName() string {
	return "prescriptions"
}
