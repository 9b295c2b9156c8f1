package service

import (
	"math"

	"github.com/yuqie6/FieldMirror/internal/pkg/config"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// ScoringPolicy 评分权重与归一化策略（可替换）
// 固定常数均为启发式上限，不是人群基线；通过配置注入以便校准。
type ScoringPolicy struct {
	IntensityBase         float64 // 强度归一化基数
	QuantityCeilingFactor float64 // 加权处方量上限 = 平均单张量 × 倍率 × 张数
	ActivityWeights       map[schema.ActivityType]float64
	AccountWeights        map[schema.AccountType]float64
}

// DefaultScoringPolicy 默认策略（观测常数）
func DefaultScoringPolicy() *ScoringPolicy {
	return &ScoringPolicy{
		IntensityBase:         100,
		QuantityCeilingFactor: 2.0,
		ActivityWeights: map[schema.ActivityType]float64{
			schema.ActivityVisit:        3,
			schema.ActivityCall:         2,
			schema.ActivityMessage:      1,
			schema.ActivityPresentation: 2,
			schema.ActivityFollowUp:     1,
		},
		AccountWeights: map[schema.AccountType]float64{
			schema.AccountGeneralHospital: 1.5,
			schema.AccountHospital:        1.2,
			schema.AccountClinic:          1.0,
			schema.AccountPharmacy:        0.8,
		},
	}
}

// PolicyFromConfig 从配置构造策略，未配置项回落默认值
func PolicyFromConfig(cfg config.ScoringConfig) *ScoringPolicy {
	p := DefaultScoringPolicy()
	if cfg.IntensityBase > 0 {
		p.IntensityBase = cfg.IntensityBase
	}
	if cfg.QuantityCeilingFactor > 0 {
		p.QuantityCeilingFactor = cfg.QuantityCeilingFactor
	}
	return p
}

// ActivityWeight 活动类型权重，未知类型记 1
func (p *ScoringPolicy) ActivityWeight(t schema.ActivityType) float64 {
	if w, ok := p.ActivityWeights[t]; ok {
		return w
	}
	return 1
}

// AccountWeight 客户类型权重，未知类型记 1
func (p *ScoringPolicy) AccountWeight(t schema.AccountType) float64 {
	if w, ok := p.AccountWeights[t]; ok {
		return w
	}
	return 1
}

// PriceWeight 价格权重：log10(price+1)/10，非正价格记 1
func (p *ScoringPolicy) PriceWeight(price float64) float64 {
	if price <= 0 {
		return 1.0
	}
	return math.Log10(price+1) / 10
}
