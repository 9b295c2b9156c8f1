package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yuqie6/FieldMirror/internal/eventbus"
	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// 事件类型（SSE 推送用）
const (
	EventSignalCreated  = "signal.created"
	EventOutcomeUpdated = "outcome.updated"
)

// CoachService 辅导信号引擎
// 六个互相独立、无副作用的检测器；DetectAll 顺序执行并拼接结果，不做跨检测器去重。
type CoachService struct {
	activityRepo    ActivityRepository
	signalRepo      SignalRepository
	competitorRepo  CompetitorRepository
	correlation     *CorrelationService
	hub             *eventbus.Hub
	lookbackPeriods int // 转化缺口检测的相关性回看周数
}

// NewCoachService 创建辅导信号服务。hub 可为 nil（不推送事件）。
func NewCoachService(
	activityRepo ActivityRepository,
	signalRepo SignalRepository,
	competitorRepo CompetitorRepository,
	correlation *CorrelationService,
	hub *eventbus.Hub,
) *CoachService {
	return &CoachService{
		activityRepo:    activityRepo,
		signalRepo:      signalRepo,
		competitorRepo:  competitorRepo,
		correlation:     correlation,
		hub:             hub,
		lookbackPeriods: 12,
	}
}

// DetectBehaviorLack 行为缺失：8 个分类逐一计数，低于窗口长度对应的阈值即产生中优先级信号。
// 阈值：窗口 ≤7 天为 1，≤30 天为 3，更长为 5。
func (s *CoachService) DetectBehaviorLack(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.behavior_lack"
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

	threshold := 5
	switch days := w.Days(); {
	case days <= 7:
		threshold = 1
	case days <= 30:
		threshold = 3
	}

	counts := make(map[schema.BehaviorCategory]int)
	for _, a := range activities {
		counts[a.Behavior]++
	}

	var signals []schema.CoachingSignal
	for _, category := range schema.AllBehaviorCategories() {
		count := counts[category]
		if count >= threshold {
			continue
		}
		signals = append(signals, schema.CoachingSignal{
			OwnerID:   ownerID,
			AccountID: accountID,
			Type:      schema.SignalBehaviorLack,
			Priority:  schema.PriorityMedium,
			Behavior:  category,
			Message:   fmt.Sprintf("行为「%s」近 %d 天仅 %d 次，低于阈值 %d 次", schema.BehaviorCategoryName(category), w.Days(), count, threshold),
			Action:    fmt.Sprintf("补足「%s」类动作，本周期至少安排 %d 次", schema.BehaviorCategoryName(category), threshold),
			Context: schema.JSONMap{
				"behavior":  string(category),
				"count":     count,
				"threshold": threshold,
			},
		})
	}
	return signals, nil
}

// DetectRelationshipDecline 关系弱化：逐客户对比当前窗口与紧邻等长窗口的活动次数，
// 上期有活动且本期不足上期一半时产生高优先级信号。
func (s *CoachService) DetectRelationshipDecline(ctx context.Context, ownerID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.relationship_decline"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	curr, err := s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}
	prevWindow := w.Previous()
	prev, err := s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, prevWindow.Start, prevWindow.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	currCounts := countByAccount(curr)
	prevCounts := countByAccount(prev)

	var signals []schema.CoachingSignal
	for accountID, prevCount := range prevCounts {
		if accountID == 0 {
			continue
		}
		currCount := currCounts[accountID]
		if prevCount > 0 && float64(currCount) < float64(prevCount)*0.5 {
			signals = append(signals, schema.CoachingSignal{
				OwnerID:   ownerID,
				AccountID: accountID,
				Type:      schema.SignalRelationshipDecline,
				Priority:  schema.PriorityHigh,
				Message:   fmt.Sprintf("客户活动量由上期 %d 次降至本期 %d 次，降幅超过一半", prevCount, currCount),
				Context: schema.JSONMap{
					"current_count":  currCount,
					"previous_count": prevCount,
				},
			})
		}
	}
	return signals, nil
}

// DetectCompetitorActivity 竞品活跃：窗口内触达过的客户若有外部竞品信号记录，
// 按客户聚合为一条高优先级信号，列出去重后的竞品名。
func (s *CoachService) DetectCompetitorActivity(ctx context.Context, ownerID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.competitor_activity"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	accountIDs, err := s.activityRepo.DistinctAccountIDs(ctx, ownerID, w.Start, w.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}
	if len(accountIDs) == 0 {
		return nil, nil
	}

	records, err := s.competitorRepo.GetByAccountsAndRange(ctx, accountIDs, w.Start, w.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	byAccount := make(map[int64][]string)
	seen := make(map[int64]map[string]struct{})
	for _, r := range records {
		if seen[r.AccountID] == nil {
			seen[r.AccountID] = make(map[string]struct{})
		}
		if _, ok := seen[r.AccountID][r.Competitor]; ok {
			continue
		}
		seen[r.AccountID][r.Competitor] = struct{}{}
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r.Competitor)
	}

	var signals []schema.CoachingSignal
	for _, accountID := range accountIDs {
		competitors, ok := byAccount[accountID]
		if !ok {
			continue
		}
		signals = append(signals, schema.CoachingSignal{
			OwnerID:   ownerID,
			AccountID: accountID,
			Type:      schema.SignalCompetitorActivity,
			Priority:  schema.PriorityHigh,
			Message:   fmt.Sprintf("客户近 %d 天出现 %d 个竞品动向", w.Days(), len(competitors)),
			Context: schema.JSONMap{
				"competitors": competitors,
			},
		})
	}
	return signals, nil
}

// DetectConversionLack 转化缺口：对转化率做相关性分析取 Top-3 行为，
// 其中窗口内不足 2 次的行为产生高优先级信号。
func (s *CoachService) DetectConversionLack(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.conversion_lack"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	// 相关性样本取截至窗口结束的周维度回看区间
	lookbackStart := time.UnixMilli(w.End).AddDate(0, 0, -7*s.lookbackPeriods).UnixMilli()
	report, err := s.correlation.Analyze(ctx, ownerID, accountID, schema.PeriodWeekly, lookbackStart, w.End)
	if err != nil {
		return nil, err
	}
	top := report.Top[schema.OutcomeTypeConversionRate]
	if len(top) == 0 {
		return nil, nil
	}

	activities, err := s.fetchActivities(ctx, ownerID, accountID, w)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}
	counts := make(map[schema.BehaviorCategory]int)
	for _, a := range activities {
		counts[a.Behavior]++
	}

	var signals []schema.CoachingSignal
	for _, tb := range top {
		count := counts[tb.Behavior]
		if count >= 2 {
			continue
		}
		signals = append(signals, schema.CoachingSignal{
			OwnerID:   ownerID,
			AccountID: accountID,
			Type:      schema.SignalConversionLack,
			Priority:  schema.PriorityHigh,
			Behavior:  tb.Behavior,
			Message:   fmt.Sprintf("与转化率高相关的行为「%s」窗口内仅 %d 次", schema.BehaviorCategoryName(tb.Behavior), count),
			Action:    fmt.Sprintf("优先增加「%s」类动作频次", schema.BehaviorCategoryName(tb.Behavior)),
			Context: schema.JSONMap{
				"behavior":    string(tb.Behavior),
				"count":       count,
				"correlation": tb.Correlation,
			},
		})
	}
	return signals, nil
}

// DetectInterestDrop 兴趣下滑：逐客户对比当前与上一窗口的质量分均值。
// 上期无数据时基线取 100；本期均值 ≤30 或低于上期七成即产生中优先级信号。
func (s *CoachService) DetectInterestDrop(ctx context.Context, ownerID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.interest_drop"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	curr, err := s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}
	prevWindow := w.Previous()
	prev, err := s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, prevWindow.Start, prevWindow.End)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	currAvg := qualityAvgByAccount(curr)
	prevAvg := qualityAvgByAccount(prev)

	var signals []schema.CoachingSignal
	for accountID, avg := range currAvg {
		if accountID == 0 {
			continue
		}
		baseline, ok := prevAvg[accountID]
		if !ok {
			baseline = 100
		}
		if avg <= 30 || (baseline > 0 && avg < baseline*0.7) {
			signals = append(signals, schema.CoachingSignal{
				OwnerID:   ownerID,
				AccountID: accountID,
				Type:      schema.SignalInterestDrop,
				Priority:  schema.PriorityMedium,
				Message:   fmt.Sprintf("客户互动质量均值由 %.1f 降至 %.1f", baseline, avg),
				Context: schema.JSONMap{
					"current_avg":  round2(avg),
					"previous_avg": round2(baseline),
				},
			})
		}
	}
	return signals, nil
}

// DetectWeakBehavior 薄弱行为：各分类的质量分均值低于全体均值一半时产生低优先级信号。
// 全体均值只在窗口内出现过的分类上计算；全体均值为 0 时不产生信号。
func (s *CoachService) DetectWeakBehavior(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.CoachingSignal, error) {
	const op = "coach.weak_behavior"
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
	if len(activities) == 0 {
		return nil, nil
	}

	sums := make(map[schema.BehaviorCategory]float64)
	counts := make(map[schema.BehaviorCategory]int)
	for _, a := range activities {
		sums[a.Behavior] += a.QualityScore
		counts[a.Behavior]++
	}

	avgs := make(map[schema.BehaviorCategory]float64, len(sums))
	grandSum := 0.0
	for category, sum := range sums {
		avg := sum / float64(counts[category])
		avgs[category] = avg
		grandSum += avg
	}
	grandAvg := grandSum / float64(len(avgs))
	if grandAvg <= 0 {
		return nil, nil
	}

	var signals []schema.CoachingSignal
	for _, category := range schema.AllBehaviorCategories() {
		avg, ok := avgs[category]
		if !ok {
			continue
		}
		if avg >= grandAvg*0.5 {
			continue
		}
		signals = append(signals, schema.CoachingSignal{
			OwnerID:   ownerID,
			AccountID: accountID,
			Type:      schema.SignalWeakBehavior,
			Priority:  schema.PriorityLow,
			Behavior:  category,
			Message:   fmt.Sprintf("行为「%s」质量均值 %.1f，明显低于整体均值 %.1f", schema.BehaviorCategoryName(category), avg, grandAvg),
			Context: schema.JSONMap{
				"behavior":     string(category),
				"category_avg": round2(avg),
				"grand_avg":    round2(grandAvg),
			},
		})
	}
	return signals, nil
}

// DetectAll 顺序执行六个检测器并拼接结果。
// 单个检测器失败只记日志并汇入返回的 error，不阻断其余检测器。
func (s *CoachService) DetectAll(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.CoachingSignal, error) {
	type detector struct {
		name string
		run  func() ([]schema.CoachingSignal, error)
	}
	detectors := []detector{
		{"behavior_lack", func() ([]schema.CoachingSignal, error) { return s.DetectBehaviorLack(ctx, ownerID, accountID, w) }},
		{"relationship_decline", func() ([]schema.CoachingSignal, error) { return s.DetectRelationshipDecline(ctx, ownerID, w) }},
		{"competitor_activity", func() ([]schema.CoachingSignal, error) { return s.DetectCompetitorActivity(ctx, ownerID, w) }},
		{"conversion_lack", func() ([]schema.CoachingSignal, error) { return s.DetectConversionLack(ctx, ownerID, accountID, w) }},
		{"interest_drop", func() ([]schema.CoachingSignal, error) { return s.DetectInterestDrop(ctx, ownerID, w) }},
		{"weak_behavior", func() ([]schema.CoachingSignal, error) { return s.DetectWeakBehavior(ctx, ownerID, accountID, w) }},
	}

	var all []schema.CoachingSignal
	var errs []error
	for _, d := range detectors {
		signals, err := d.run()
		if err != nil {
			slog.Warn("检测器执行失败", "detector", d.name, "owner", ownerID, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
			continue
		}
		all = append(all, signals...)
	}
	return all, errors.Join(errs...)
}

// GenerateAndStore 执行全部检测器，结果打上同一批次号后落库，并推送 signal.created 事件。
func (s *CoachService) GenerateAndStore(ctx context.Context, ownerID, accountID int64, w Window) (string, []schema.CoachingSignal, error) {
	const op = "coach.generate_and_store"

	signals, detectErr := s.DetectAll(ctx, ownerID, accountID, w)
	if len(signals) == 0 {
		return "", nil, detectErr
	}

	batchID := uuid.NewString()
	for i := range signals {
		signals[i].BatchID = batchID
	}

	if err := s.signalRepo.BatchInsert(ctx, signals); err != nil {
		return "", nil, apperr.Downstream(op, err)
	}

	s.hub.Publish(eventbus.Event{
		Type: EventSignalCreated,
		Data: map[string]any{
			"batch_id": batchID,
			"owner":    ownerID,
			"count":    len(signals),
		},
	})

	slog.Info("辅导信号已生成", "owner", ownerID, "batch", batchID, "count", len(signals))
	return batchID, signals, detectErr
}

func (s *CoachService) fetchActivities(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.Activity, error) {
	if accountID > 0 {
		return s.activityRepo.GetByAccountAndTimeRange(ctx, ownerID, accountID, w.Start, w.End)
	}
	return s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
}

func countByAccount(activities []schema.Activity) map[int64]int {
	counts := make(map[int64]int)
	for _, a := range activities {
		counts[a.AccountID]++
	}
	return counts
}

func qualityAvgByAccount(activities []schema.Activity) map[int64]float64 {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, a := range activities {
		sums[a.AccountID] += a.QualityScore
		counts[a.AccountID]++
	}
	avgs := make(map[int64]float64, len(sums))
	for id, sum := range sums {
		avgs[id] = sum / float64(counts[id])
	}
	return avgs
}
