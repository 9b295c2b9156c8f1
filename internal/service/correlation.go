package service

import (
	"context"
	"sort"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// CorrelationRecord 单个 行为分类 × 成果指标 的相关结果
type CorrelationRecord struct {
	Behavior    schema.BehaviorCategory `json:"behavior"`
	Outcome     schema.OutcomeType      `json:"outcome"`
	Correlation float64                 `json:"correlation"` // Pearson r，[-1,1]
	Weight      float64                 `json:"weight"`      // |r|
	SampleSize  int                     `json:"sample_size"`
}

// TopBehavior 某成果指标下权重领先的行为分类
type TopBehavior struct {
	Behavior    schema.BehaviorCategory `json:"behavior"`
	Correlation float64                 `json:"correlation"`
	Weight      float64                 `json:"weight"`
}

// CorrelationReport 全量相关矩阵与各成果指标的 Top 行为
type CorrelationReport struct {
	Records []CorrelationRecord                    `json:"records"`
	Top     map[schema.OutcomeType][]TopBehavior `json:"top"`
}

// CorrelationService 行为评分与成果指标的跨周期相关性分析
type CorrelationService struct {
	scoreRepo   BehaviorScoreRepository
	outcomeRepo OutcomeRepository
}

// NewCorrelationService 创建相关性分析服务
func NewCorrelationService(scoreRepo BehaviorScoreRepository, outcomeRepo OutcomeRepository) *CorrelationService {
	return &CorrelationService{scoreRepo: scoreRepo, outcomeRepo: outcomeRepo}
}

// Analyze 读取已落库的行为评分与成果指标序列，按周期对齐后做逐对 Pearson 相关。
// 对齐键为 (period_start, period_end)；只有两侧都存在的周期才进入样本。
// 样本点不足 2 个的组合会被跳过，不出现在结果中。
func (s *CorrelationService) Analyze(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, rangeStart, rangeEnd int64) (*CorrelationReport, error) {
	const op = "correlation.analyze"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if rangeStart > rangeEnd {
		return nil, apperr.Validation(op, "区间非法: start=%d end=%d", rangeStart, rangeEnd)
	}

	scores, err := s.scoreRepo.GetByAccountAndRange(ctx, ownerID, accountID, rangeStart, rangeEnd)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}
	outcomes, err := s.outcomeRepo.GetSeries(ctx, ownerID, accountID, periodType, rangeStart, rangeEnd)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	// 行为质量分按 周期键 → 分类 建表
	qualityByPeriod := make(map[Window]map[schema.BehaviorCategory]float64)
	for _, sc := range scores {
		key := Window{Start: sc.PeriodStart, End: sc.PeriodEnd}
		if qualityByPeriod[key] == nil {
			qualityByPeriod[key] = make(map[schema.BehaviorCategory]float64)
		}
		qualityByPeriod[key][sc.Behavior] = sc.QualityScore
	}

	report := &CorrelationReport{
		Records: make([]CorrelationRecord, 0, len(schema.AllBehaviorCategories())*len(schema.AllOutcomeTypes())),
		Top:     make(map[schema.OutcomeType][]TopBehavior),
	}

	for _, outcomeType := range schema.AllOutcomeTypes() {
		candidates := make([]TopBehavior, 0, len(schema.AllBehaviorCategories()))

		for _, behavior := range schema.AllBehaviorCategories() {
			var xs, ys []float64
			for _, o := range outcomes {
				period := Window{Start: o.PeriodStart, End: o.PeriodEnd}
				byBehavior, ok := qualityByPeriod[period]
				if !ok {
					continue
				}
				x, ok := byBehavior[behavior]
				if !ok {
					continue
				}
				xs = append(xs, x)
				ys = append(ys, o.MetricValue(outcomeType))
			}
			if len(xs) < 2 {
				continue
			}

			r := pearson(xs, ys)
			report.Records = append(report.Records, CorrelationRecord{
				Behavior:    behavior,
				Outcome:     outcomeType,
				Correlation: r,
				Weight:      abs(r),
				SampleSize:  len(xs),
			})
			candidates = append(candidates, TopBehavior{Behavior: behavior, Correlation: r, Weight: abs(r)})
		}

		// 权重降序取前三；权重相同时保持分类的固定枚举顺序（stable）
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Weight > candidates[j].Weight
		})
		if len(candidates) > 3 {
			candidates = candidates[:3]
		}
		if len(candidates) > 0 {
			report.Top[outcomeType] = candidates
		}
	}

	return report, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
