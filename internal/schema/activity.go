package schema

import "time"

// ActivityType 活动类型
type ActivityType string

const (
	ActivityVisit        ActivityType = "visit"        // 拜访
	ActivityCall         ActivityType = "call"         // 电话
	ActivityMessage      ActivityType = "message"      // 消息
	ActivityPresentation ActivityType = "presentation" // 产品说明
	ActivityFollowUp     ActivityType = "follow_up"    // 跟进
)

// BehaviorCategory 行为分类（固定 8 类）
type BehaviorCategory string

const (
	BehaviorApproach      BehaviorCategory = "approach"      // 接近
	BehaviorContact       BehaviorCategory = "contact"       // 接触
	BehaviorVisit         BehaviorCategory = "visit"         // 拜访
	BehaviorPresentation  BehaviorCategory = "presentation"  // 说明
	BehaviorQuestion      BehaviorCategory = "question"      // 提问
	BehaviorNeedCreation  BehaviorCategory = "need_creation" // 需求创造
	BehaviorDemonstration BehaviorCategory = "demonstration" // 实演
	BehaviorFollowUp      BehaviorCategory = "follow_up"     // 跟进
)

// AllBehaviorCategories 行为分类全集（评分与信号检测共用同一份定义）
func AllBehaviorCategories() []BehaviorCategory {
	return []BehaviorCategory{
		BehaviorApproach,
		BehaviorContact,
		BehaviorVisit,
		BehaviorPresentation,
		BehaviorQuestion,
		BehaviorNeedCreation,
		BehaviorDemonstration,
		BehaviorFollowUp,
	}
}

// BehaviorCategoryName 行为分类的显示名
func BehaviorCategoryName(c BehaviorCategory) string {
	switch c {
	case BehaviorApproach:
		return "接近"
	case BehaviorContact:
		return "接触"
	case BehaviorVisit:
		return "拜访"
	case BehaviorPresentation:
		return "说明"
	case BehaviorQuestion:
		return "提问"
	case BehaviorNeedCreation:
		return "需求创造"
	case BehaviorDemonstration:
		return "实演"
	case BehaviorFollowUp:
		return "跟进"
	default:
		return string(c)
	}
}

// OutcomeTag 活动结果标记
type OutcomeTag string

const (
	OutcomeWon     OutcomeTag = "won"
	OutcomeOngoing OutcomeTag = "ongoing"
	OutcomeLost    OutcomeTag = "lost"
	OutcomeNone    OutcomeTag = "none"
)

// Activity 销售活动记录
// 由外勤人员录入；被聚合进周期评分后视为不可变（修改触发重算，不在本层建模）。
// 数据量级：万级/年
type Activity struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        int64            `gorm:"index;not null" json:"owner_id"`          // 归属销售
	AccountID      int64            `gorm:"index;not null" json:"account_id"`        // 客户（医院/诊所/药店）
	ContactID      int64            `gorm:"index" json:"contact_id"`                 // 联系人，0 表示未指定
	Type           ActivityType     `gorm:"size:20;index" json:"type"`               // 活动类型
	Behavior       BehaviorCategory `gorm:"size:20;index" json:"behavior"`           // 行为分类
	Note           string           `gorm:"type:text" json:"note"`                   // 自由文本备注
	QualityScore   float64          `gorm:"default:0" json:"quality_score"`          // 质量分 [0,100]
	QuantityScore  float64          `gorm:"default:0" json:"quantity_score"`         // 数量分 [0,100]
	DurationMin    int              `gorm:"default:0" json:"duration_min"`           // 时长（分钟）
	PerformedAt    int64            `gorm:"index;not null" json:"performed_at"`      // 发生时间（Unix 毫秒）
	Outcome        OutcomeTag       `gorm:"size:10;default:none" json:"outcome"`     // 结果标记
	SentimentScore float64          `gorm:"default:-1" json:"sentiment_score"`       // 情感分 [0,100]，-1 表示未采集
	TagIDs         JSONArray        `gorm:"type:text" json:"tag_ids"`                // 标签 ID 集合
	NextActionAt   int64            `gorm:"default:0" json:"next_action_at"`         // 下一步行动日期，0 表示未设置
	DwellSec       int              `gorm:"default:0" json:"dwell_sec"`              // 录入停留秒数
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Activity) TableName() string {
	return "activities"
}
