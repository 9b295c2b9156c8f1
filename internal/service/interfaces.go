package service

import (
	"context"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type ActivityRepository interface {
	GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Activity, error)
	GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Activity, error)
	DistinctAccountIDs(ctx context.Context, ownerID, startTime, endTime int64) ([]int64, error)
}

type PrescriptionRepository interface {
	GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Prescription, error)
	GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Prescription, error)
}

type AccountRepository interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]schema.Account, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]schema.Account, error)
}

type BehaviorScoreRepository interface {
	ReplaceForPeriod(ctx context.Context, ownerID, accountID, periodStart, periodEnd int64, scores []schema.BehaviorScore) error
	GetByAccountAndRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.BehaviorScore, error)
}

type OutcomeRepository interface {
	Replace(ctx context.Context, result *schema.OutcomeResult) error
	GetSeries(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, startTime, endTime int64) ([]schema.OutcomeResult, error)
}

type SignalRepository interface {
	BatchInsert(ctx context.Context, signals []schema.CoachingSignal) error
}

type CompetitorRepository interface {
	GetByAccountsAndRange(ctx context.Context, accountIDs []int64, startTime, endTime int64) ([]schema.CompetitorSignal, error)
}

// ExternalMetrics 外部定义的综合指标（HIR/RTR/PHR），仅按签名消费，内部公式不在本系统内。
// accountID 为 0 表示该 owner 下全客户汇总。
type ExternalMetrics interface {
	CalculateHIR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error)
	CalculateRTR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error)
	CalculatePHR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error)
}

// Embedder 文本嵌入能力（备注检索用），未配置时返回 IsConfigured()==false
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	IsConfigured() bool
}
