package schema

import "time"

// PeriodType 周期类型
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodCustom  PeriodType = "custom"
)

// BehaviorScore 行为评分（按周期派生，整周期替换写入，不做原地更新）
// 分值统一 float64：强度/质量入库前四舍五入，多样性保留原值（见 coverage 计算的已知退化）。
type BehaviorScore struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        int64            `gorm:"index;not null" json:"owner_id"`
	AccountID      int64            `gorm:"index;not null" json:"account_id"`
	Behavior       BehaviorCategory `gorm:"size:20;index" json:"behavior"`
	IntensityScore float64          `gorm:"default:0" json:"intensity_score"` // [0,100]
	DiversityScore float64          `gorm:"default:0" json:"diversity_score"` // [0,100]
	QualityScore   float64          `gorm:"default:0" json:"quality_score"`   // [0,100]
	PeriodStart    int64            `gorm:"index;not null" json:"period_start"` // Unix 毫秒
	PeriodEnd      int64            `gorm:"index;not null" json:"period_end"`   // Unix 毫秒
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (BehaviorScore) TableName() string {
	return "behavior_scores"
}

// OutcomeResult 周期成果指标
// 以 (owner, period_type, period_start, period_end, account) 为键做删除后插入的幂等替换。
// AccountID=0 表示该 owner 下全客户汇总。
type OutcomeResult struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID           int64      `gorm:"index;not null;uniqueIndex:uniq_outcome_key,priority:1" json:"owner_id"`
	PeriodType        PeriodType `gorm:"size:10;uniqueIndex:uniq_outcome_key,priority:2" json:"period_type"`
	PeriodStart       int64      `gorm:"not null;uniqueIndex:uniq_outcome_key,priority:3" json:"period_start"`
	PeriodEnd         int64      `gorm:"not null;uniqueIndex:uniq_outcome_key,priority:4" json:"period_end"`
	AccountID         int64      `gorm:"uniqueIndex:uniq_outcome_key,priority:5" json:"account_id"`
	HIRScore          float64    `gorm:"default:0" json:"hir_score"`          // 外部指标，[0,100]
	ConversionRate    float64    `gorm:"default:0" json:"conversion_rate"`    // [-100,100]
	FieldGrowthRate   float64    `gorm:"default:0" json:"field_growth_rate"`  // 无界，保留两位小数
	PrescriptionIndex float64    `gorm:"default:0" json:"prescription_index"` // [0,100]
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (OutcomeResult) TableName() string {
	return "outcome_results"
}

// OutcomeType 成果指标类型（相关性分析的纵轴）
type OutcomeType string

const (
	OutcomeTypeHIR               OutcomeType = "hir_score"
	OutcomeTypeConversionRate    OutcomeType = "conversion_rate"
	OutcomeTypeFieldGrowthRate   OutcomeType = "field_growth_rate"
	OutcomeTypePrescriptionIndex OutcomeType = "prescription_index"
)

// AllOutcomeTypes 成果指标全集
func AllOutcomeTypes() []OutcomeType {
	return []OutcomeType{
		OutcomeTypeHIR,
		OutcomeTypeConversionRate,
		OutcomeTypeFieldGrowthRate,
		OutcomeTypePrescriptionIndex,
	}
}

// MetricValue 按指标类型取值
func (o OutcomeResult) MetricValue(t OutcomeType) float64 {
	switch t {
	case OutcomeTypeHIR:
		return o.HIRScore
	case OutcomeTypeConversionRate:
		return o.ConversionRate
	case OutcomeTypeFieldGrowthRate:
		return o.FieldGrowthRate
	case OutcomeTypePrescriptionIndex:
		return o.PrescriptionIndex
	default:
		return 0
	}
}
