package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// BehaviorScoreService 行为评分计算
// 将窗口内的活动记录转换为 8 个行为分类各自的强度/覆盖/质量分。
type BehaviorScoreService struct {
	activityRepo ActivityRepository
	scoreRepo    BehaviorScoreRepository
	policy       *ScoringPolicy
}

// NewBehaviorScoreService 创建行为评分服务
func NewBehaviorScoreService(activityRepo ActivityRepository, scoreRepo BehaviorScoreRepository, policy *ScoringPolicy) *BehaviorScoreService {
	if policy == nil {
		policy = DefaultScoringPolicy()
	}
	return &BehaviorScoreService{
		activityRepo: activityRepo,
		scoreRepo:    scoreRepo,
		policy:       policy,
	}
}

// Calculate 计算窗口内的行为评分。accountID 为 0 表示全客户汇总。
// 无论数据量多少，固定返回 8 条结果（无数据时全零）。
func (s *BehaviorScoreService) Calculate(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.BehaviorScore, error) {
	const op = "behavior_score.calculate"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	activities, err := s.fetchActivities(ctx, ownerID, accountID, w)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	results := make([]schema.BehaviorScore, 0, 8)
	for _, category := range schema.AllBehaviorCategories() {
		filtered := filterByBehavior(activities, category)

		results = append(results, schema.BehaviorScore{
			OwnerID:        ownerID,
			AccountID:      accountID,
			Behavior:       category,
			IntensityScore: math.Round(s.calcIntensity(filtered)),
			// 注意：覆盖分在这里收到的是已按分类过滤的切片，结果只会是 0 或 12.5。
			// 上游语义未澄清前保持原样；若要按全窗口计算，改为传 activities 即可。
			DiversityScore: calcDiversity(filtered),
			QualityScore:   math.Round(calcQuality(filtered)),
			PeriodStart:    w.Start,
			PeriodEnd:      w.End,
		})
	}

	return results, nil
}

// CalculateAndStore 计算并整周期替换落库
func (s *BehaviorScoreService) CalculateAndStore(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.BehaviorScore, error) {
	const op = "behavior_score.store"

	scores, err := s.Calculate(ctx, ownerID, accountID, w)
	if err != nil {
		return nil, err
	}

	if err := s.scoreRepo.ReplaceForPeriod(ctx, ownerID, accountID, w.Start, w.End, scores); err != nil {
		return nil, apperr.Downstream(op, err)
	}

	slog.Debug("行为评分已落库", "owner", ownerID, "account", accountID, "period_start", w.Start)
	return scores, nil
}

func (s *BehaviorScoreService) fetchActivities(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.Activity, error) {
	if accountID > 0 {
		return s.activityRepo.GetByAccountAndTimeRange(ctx, ownerID, accountID, w.Start, w.End)
	}
	return s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
}

// calcIntensity 强度分：活动类型加权求和，按基数归一化为百分比后截断
func (s *BehaviorScoreService) calcIntensity(activities []schema.Activity) float64 {
	if len(activities) == 0 {
		return 0
	}

	weighted := 0.0
	for _, a := range activities {
		weighted += s.policy.ActivityWeight(a.Type)
	}

	base := s.policy.IntensityBase
	if base <= 0 {
		base = 100
	}
	return clamp(weighted/base*100, 0, 100)
}

// calcDiversity 覆盖分：出现的行为分类数 / 8，换算为百分比。
// 接收活动切片作为参数，由调用方决定统计口径。
func calcDiversity(activities []schema.Activity) float64 {
	if len(activities) == 0 {
		return 0
	}

	seen := make(map[schema.BehaviorCategory]struct{})
	for _, a := range activities {
		seen[a.Behavior] = struct{}{}
	}

	total := len(schema.AllBehaviorCategories())
	return clamp(float64(len(seen))/float64(total)*100, 0, 100)
}

// calcQuality 质量分：质量均值×0.4 + 数量均值×0.3 + 跟进占比×0.3
func calcQuality(activities []schema.Activity) float64 {
	if len(activities) == 0 {
		return 0
	}

	var qualitySum, quantitySum float64
	followUps := 0
	for _, a := range activities {
		qualitySum += a.QualityScore
		quantitySum += a.QuantityScore
		if a.Behavior == schema.BehaviorFollowUp {
			followUps++
		}
	}

	n := float64(len(activities))
	avgQuality := qualitySum / n
	avgQuantity := quantitySum / n
	followUpShare := float64(followUps) / n * 100

	return clamp(avgQuality*0.4+avgQuantity*0.3+followUpShare*0.3, 0, 100)
}

// filterByBehavior 按行为分类过滤
func filterByBehavior(activities []schema.Activity, category schema.BehaviorCategory) []schema.Activity {
	out := make([]schema.Activity, 0, len(activities))
	for _, a := range activities {
		if a.Behavior == category {
			out = append(out, a)
		}
	}
	return out
}
