package schema

import "time"

// AccountType 客户类型（影响处方指数的加权）
type AccountType string

const (
	AccountGeneralHospital AccountType = "general_hospital" // 综合医院
	AccountHospital        AccountType = "hospital"         // 医院
	AccountClinic          AccountType = "clinic"           // 诊所
	AccountPharmacy        AccountType = "pharmacy"         // 药店
)

// Account 客户（拜访对象）
// 数据量级：百级
type Account struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64       `gorm:"index;not null" json:"owner_id"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	Type      AccountType `gorm:"size:20;index;default:clinic" json:"type"`
	Region    string      `gorm:"size:100;index" json:"region"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}
