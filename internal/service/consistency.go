package service

import (
	"context"
	"math"
	"time"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// ConsistencyService 行为一致率（BCR）计算
// 三个加性子分：频度(0-40) + 规律性(0-30) + 质量稳定性(0-30)。
type ConsistencyService struct {
	activityRepo ActivityRepository
	scoreRepo    BehaviorScoreRepository
	windowDays   int // 默认窗口天数
}

// NewConsistencyService 创建一致率服务
func NewConsistencyService(activityRepo ActivityRepository, scoreRepo BehaviorScoreRepository, windowDays int) *ConsistencyService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &ConsistencyService{
		activityRepo: activityRepo,
		scoreRepo:    scoreRepo,
		windowDays:   windowDays,
	}
}

// DefaultWindow 截至当前时刻的默认 BCR 窗口
func (s *ConsistencyService) DefaultWindow() Window {
	return LastNDays(time.Now(), s.windowDays)
}

// Calculate 计算窗口内的 BCR，整数 [0,100]。零活动直接返回 0，不再计算子分。
func (s *ConsistencyService) Calculate(ctx context.Context, ownerID, accountID int64, w Window) (int, error) {
	const op = "consistency.calculate"
	if ownerID <= 0 {
		return 0, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return 0, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	activities, err := s.fetchActivities(ctx, ownerID, accountID, w)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	if len(activities) == 0 {
		return 0, nil
	}

	scores, err := s.scoreRepo.GetByAccountAndRange(ctx, ownerID, accountID, w.Start, w.End)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}

	total := frequencyScore(activities, w.Days()) +
		regularityScore(activities) +
		stabilityScore(scores)

	return int(clamp(math.Round(total), 0, 100)), nil
}

func (s *ConsistencyService) fetchActivities(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.Activity, error) {
	if accountID > 0 {
		return s.activityRepo.GetByAccountAndTimeRange(ctx, ownerID, accountID, w.Start, w.End)
	}
	return s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
}

// frequencyScore 频度分：活跃天数占比 × 40，封顶 40
func frequencyScore(activities []schema.Activity, totalDays int) float64 {
	if totalDays <= 0 {
		return 0
	}

	days := make(map[string]struct{})
	for _, a := range activities {
		days[time.UnixMilli(a.PerformedAt).Local().Format("2006-01-02")] = struct{}{}
	}

	return math.Min(40, float64(len(days))/float64(totalDays)*40)
}

// regularityScore 规律性分：按活动间隔的均值与离散度衡量节奏。
// 不足 2 次活动无法构成间隔，记 0。
func regularityScore(activities []schema.Activity) float64 {
	if len(activities) < 2 {
		return 0
	}

	// 仓储按时间升序返回；这里不再排序
	intervals := make([]float64, 0, len(activities)-1)
	for i := 1; i < len(activities); i++ {
		hours := float64(activities[i].PerformedAt-activities[i-1].PerformedAt) / float64(time.Hour/time.Millisecond)
		intervals = append(intervals, hours)
	}

	avgInterval := mean(intervals)
	sd := stdDev(intervals)

	consistencyRatio := 1.0
	if avgInterval > 0 {
		consistencyRatio = math.Min(1, 24/avgInterval)
	}

	regularityRatio := 1.0
	if sd > 0 {
		regularityRatio = math.Min(1, 24/sd)
	}

	return consistencyRatio * regularityRatio * 30
}

// stabilityScore 质量稳定性分：30 − 质量分标准差，下限 0。
// 质量样本不足 2 个时贡献 0。
func stabilityScore(scores []schema.BehaviorScore) float64 {
	if len(scores) < 2 {
		return 0
	}

	qualities := make([]float64, 0, len(scores))
	for _, s := range scores {
		qualities = append(qualities, s.QualityScore)
	}

	return math.Max(0, 30-stdDev(qualities))
}
