package schema

import "time"

// SignalType 辅导信号类型（固定 6 类检测器，一一对应）
type SignalType string

const (
	SignalBehaviorLack        SignalType = "behavior_lack"        // 行为缺失
	SignalRelationshipDecline SignalType = "relationship_decline" // 关系衰退
	SignalCompetitorActivity  SignalType = "competitor_activity"  // 竞品动向
	SignalConversionLack      SignalType = "conversion_lack"      // 转化关键行为不足
	SignalInterestDrop        SignalType = "interest_drop"        // 兴趣下降
	SignalWeakBehavior        SignalType = "weak_behavior"        // 薄弱行为
)

// SignalPriority 信号优先级
type SignalPriority string

const (
	PriorityHigh   SignalPriority = "high"
	PriorityMedium SignalPriority = "medium"
	PriorityLow    SignalPriority = "low"
)

// CoachingSignal 辅导信号
// 每次检测运行全新生成；与历史信号的去重/消解由外部维护（Resolved 由人工置位）。
type CoachingSignal struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64            `gorm:"index;not null" json:"owner_id"`
	BatchID   string           `gorm:"size:36;index" json:"batch_id"` // 同一次检测运行的 UUID
	Type      SignalType       `gorm:"size:30;index" json:"type"`
	Priority  SignalPriority   `gorm:"size:10;index" json:"priority"`
	Message   string           `gorm:"type:text" json:"message"`
	Action    string           `gorm:"type:text" json:"action"` // 建议动作
	AccountID int64            `gorm:"index" json:"account_id"` // 0 表示不针对具体客户
	ContactID int64            `json:"contact_id"`              // 0 表示不针对具体联系人
	Behavior  BehaviorCategory `gorm:"size:20" json:"behavior"` // 空表示不针对具体行为
	Context   JSONMap          `gorm:"type:text" json:"context"` // 计数/阈值等结构化上下文
	Resolved  bool             `gorm:"default:false;index" json:"resolved"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (CoachingSignal) TableName() string {
	return "coaching_signals"
}

// CompetitorSignal 竞品信号（外部采集导入，结构对本引擎不透明）
type CompetitorSignal struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID  int64     `gorm:"index;not null" json:"account_id"`
	Competitor string    `gorm:"size:255;not null" json:"competitor"`
	DetectedAt int64     `gorm:"index;not null" json:"detected_at"` // Unix 毫秒
	Tag        string    `gorm:"size:100" json:"tag"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (CompetitorSignal) TableName() string {
	return "competitor_signals"
}
