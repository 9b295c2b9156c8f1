package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

func newCoachFixture(acts *fakeActivityRepo, competitors *fakeCompetitorRepo, scoreRepo *fakeScoreRepo, outcomeRepo *fakeOutcomeRepo) (*CoachService, *fakeSignalRepo) {
	if acts == nil {
		acts = &fakeActivityRepo{}
	}
	if competitors == nil {
		competitors = &fakeCompetitorRepo{}
	}
	if scoreRepo == nil {
		scoreRepo = &fakeScoreRepo{}
	}
	if outcomeRepo == nil {
		outcomeRepo = &fakeOutcomeRepo{}
	}
	signals := &fakeSignalRepo{}
	svc := NewCoachService(acts, signals, competitors, NewCorrelationService(scoreRepo, outcomeRepo), nil)
	return svc, signals
}

func TestDetectBehaviorLackThresholdByWindowLength(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCoachFixture(nil, nil, nil, nil)

	// 空数据 + 7 天窗口：阈值 1，8 个分类全部告警
	signals, err := svc.DetectBehaviorLack(ctx, 1, 0, weekWindow())
	if err != nil {
		t.Fatalf("DetectBehaviorLack error: %v", err)
	}
	if len(signals) != 8 {
		t.Fatalf("signals=%d, want 8", len(signals))
	}
	for _, sig := range signals {
		if sig.Priority != schema.PriorityMedium {
			t.Fatalf("priority=%q, want medium", sig.Priority)
		}
		if sig.Context["threshold"] != 1 {
			t.Fatalf("threshold=%v, want 1 for 7-day window", sig.Context["threshold"])
		}
	}

	// 31 天窗口：阈值 5
	long := Window{Start: testBase, End: testBase + 31*dayMs}
	signals, err = svc.DetectBehaviorLack(ctx, 1, 0, long)
	if err != nil {
		t.Fatalf("DetectBehaviorLack error: %v", err)
	}
	if signals[0].Context["threshold"] != 5 {
		t.Fatalf("threshold=%v, want 5 for 31-day window", signals[0].Context["threshold"])
	}
}

// 评分器与信号检测器必须覆盖同一份 8 分类全集
func TestScorerAndDetectorAgreeOnCategorySet(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	scorer := NewBehaviorScoreService(&fakeActivityRepo{}, &fakeScoreRepo{}, nil)
	results, err := scorer.Calculate(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	scorerSet := make(map[schema.BehaviorCategory]struct{})
	for _, r := range results {
		scorerSet[r.Behavior] = struct{}{}
	}

	coach, _ := newCoachFixture(nil, nil, nil, nil)
	signals, err := coach.DetectBehaviorLack(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("DetectBehaviorLack error: %v", err)
	}
	detectorSet := make(map[schema.BehaviorCategory]struct{})
	for _, sig := range signals {
		detectorSet[sig.Behavior] = struct{}{}
	}

	if len(scorerSet) != 8 || len(detectorSet) != 8 {
		t.Fatalf("set sizes: scorer=%d detector=%d, want 8/8", len(scorerSet), len(detectorSet))
	}
	for c := range scorerSet {
		if _, ok := detectorSet[c]; !ok {
			t.Fatalf("category %q missing from detector set", c)
		}
	}
}

func TestDetectRelationshipDecline(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()
	prev := w.Previous()

	acts := &fakeActivityRepo{activities: []schema.Activity{
		// 客户 5：上期 4 次，本期 1 次 → 告警
		{ID: 1, OwnerID: 1, AccountID: 5, PerformedAt: prev.Start + 1},
		{ID: 2, OwnerID: 1, AccountID: 5, PerformedAt: prev.Start + 2},
		{ID: 3, OwnerID: 1, AccountID: 5, PerformedAt: prev.Start + 3},
		{ID: 4, OwnerID: 1, AccountID: 5, PerformedAt: prev.Start + 4},
		{ID: 5, OwnerID: 1, AccountID: 5, PerformedAt: w.Start + 1},
		// 客户 6：上期 2 次，本期 1 次 → 恰好一半，不告警
		{ID: 6, OwnerID: 1, AccountID: 6, PerformedAt: prev.Start + 5},
		{ID: 7, OwnerID: 1, AccountID: 6, PerformedAt: prev.Start + 6},
		{ID: 8, OwnerID: 1, AccountID: 6, PerformedAt: w.Start + 2},
	}}
	svc, _ := newCoachFixture(acts, nil, nil, nil)

	signals, err := svc.DetectRelationshipDecline(ctx, 1, w)
	if err != nil {
		t.Fatalf("DetectRelationshipDecline error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals=%d, want 1", len(signals))
	}
	if signals[0].AccountID != 5 || signals[0].Priority != schema.PriorityHigh {
		t.Fatalf("unexpected signal: %+v", signals[0])
	}
}

func TestDetectCompetitorActivityGroupsByAccount(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	acts := &fakeActivityRepo{activities: []schema.Activity{
		{ID: 1, OwnerID: 1, AccountID: 1, PerformedAt: w.Start + 1},
		{ID: 2, OwnerID: 1, AccountID: 2, PerformedAt: w.Start + 2},
	}}
	competitors := &fakeCompetitorRepo{records: []schema.CompetitorSignal{
		{ID: 1, AccountID: 1, Competitor: "瑞辉", DetectedAt: w.Start + 1},
		{ID: 2, AccountID: 1, Competitor: "瑞辉", DetectedAt: w.Start + 2}, // 重复竞品，应去重
		{ID: 3, AccountID: 1, Competitor: "诺华康", DetectedAt: w.Start + 3},
		{ID: 4, AccountID: 9, Competitor: "外部客户", DetectedAt: w.Start + 4}, // 未触达客户，不关联
	}}
	svc, _ := newCoachFixture(acts, competitors, nil, nil)

	signals, err := svc.DetectCompetitorActivity(ctx, 1, w)
	if err != nil {
		t.Fatalf("DetectCompetitorActivity error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals=%d, want 1", len(signals))
	}
	names, ok := signals[0].Context["competitors"].([]string)
	if !ok || len(names) != 2 {
		t.Fatalf("competitors=%v, want 2 distinct names", signals[0].Context["competitors"])
	}
}

// 转化缺口：top-3 为 [approach, contact, visit]，窗口内计数 {approach:1, contact:5, visit:0}
// → 恰好 2 条高优先级信号（approach、visit）
func TestDetectConversionLackEmitsExactlyTwoSignals(t *testing.T) {
	ctx := context.Background()
	w := Window{Start: testBase + 30*dayMs, End: testBase + 37*dayMs}

	scoreRepo := &fakeScoreRepo{}
	outcomeRepo := &fakeOutcomeRepo{}
	periods := []Window{
		{Start: testBase, End: testBase + 7*dayMs},
		{Start: testBase + 8*dayMs, End: testBase + 15*dayMs},
		{Start: testBase + 16*dayMs, End: testBase + 23*dayMs},
	}
	series := map[schema.BehaviorCategory][]float64{
		schema.BehaviorApproach: {10, 20, 30},
		schema.BehaviorContact:  {5, 10, 15},
		schema.BehaviorVisit:    {2, 4, 6},
	}
	conversion := []float64{5, 10, 15}
	for i, p := range periods {
		for category, values := range series {
			scoreRepo.scores = append(scoreRepo.scores, schema.BehaviorScore{
				OwnerID: 1, Behavior: category, QualityScore: values[i],
				PeriodStart: p.Start, PeriodEnd: p.End,
			})
		}
		outcomeRepo.results = append(outcomeRepo.results, schema.OutcomeResult{
			OwnerID: 1, PeriodType: schema.PeriodWeekly,
			PeriodStart: p.Start, PeriodEnd: p.End, ConversionRate: conversion[i],
		})
	}

	var acts []schema.Activity
	for i := 0; i < 5; i++ {
		acts = append(acts, schema.Activity{
			ID: int64(i + 1), OwnerID: 1, AccountID: 3,
			Behavior: schema.BehaviorContact, PerformedAt: w.Start + int64(i+1),
		})
	}
	acts = append(acts, schema.Activity{ID: 6, OwnerID: 1, AccountID: 3, Behavior: schema.BehaviorApproach, PerformedAt: w.Start + 10})

	svc, _ := newCoachFixture(&fakeActivityRepo{activities: acts}, nil, scoreRepo, outcomeRepo)
	signals, err := svc.DetectConversionLack(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("DetectConversionLack error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals=%d, want exactly 2", len(signals))
	}
	got := map[schema.BehaviorCategory]bool{}
	for _, sig := range signals {
		if sig.Priority != schema.PriorityHigh {
			t.Fatalf("priority=%q, want high", sig.Priority)
		}
		got[sig.Behavior] = true
	}
	if !got[schema.BehaviorApproach] || !got[schema.BehaviorVisit] {
		t.Fatalf("expected approach+visit signals, got %+v", got)
	}
}

func TestDetectInterestDrop(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()
	prev := w.Previous()

	acts := &fakeActivityRepo{activities: []schema.Activity{
		// 客户 7：本期均值 20 ≤ 30 → 告警
		{ID: 1, OwnerID: 1, AccountID: 7, QualityScore: 20, PerformedAt: w.Start + 1},
		// 客户 8：90 → 80，降幅不足三成 → 不告警
		{ID: 2, OwnerID: 1, AccountID: 8, QualityScore: 90, PerformedAt: prev.Start + 1},
		{ID: 3, OwnerID: 1, AccountID: 8, QualityScore: 80, PerformedAt: w.Start + 2},
		// 客户 9：无上期数据，基线 100，本期 60 < 70 → 告警
		{ID: 4, OwnerID: 1, AccountID: 9, QualityScore: 60, PerformedAt: w.Start + 3},
	}}
	svc, _ := newCoachFixture(acts, nil, nil, nil)

	signals, err := svc.DetectInterestDrop(ctx, 1, w)
	if err != nil {
		t.Fatalf("DetectInterestDrop error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals=%d, want 2", len(signals))
	}
	for _, sig := range signals {
		if sig.AccountID != 7 && sig.AccountID != 9 {
			t.Fatalf("unexpected account %d", sig.AccountID)
		}
		if sig.Priority != schema.PriorityMedium {
			t.Fatalf("priority=%q, want medium", sig.Priority)
		}
	}
}

func TestDetectWeakBehavior(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	acts := &fakeActivityRepo{activities: []schema.Activity{
		{ID: 1, OwnerID: 1, AccountID: 2, Behavior: schema.BehaviorVisit, QualityScore: 100, PerformedAt: w.Start + 1},
		{ID: 2, OwnerID: 1, AccountID: 2, Behavior: schema.BehaviorVisit, QualityScore: 100, PerformedAt: w.Start + 2},
		{ID: 3, OwnerID: 1, AccountID: 2, Behavior: schema.BehaviorContact, QualityScore: 100, PerformedAt: w.Start + 3},
		{ID: 4, OwnerID: 1, AccountID: 2, Behavior: schema.BehaviorApproach, QualityScore: 10, PerformedAt: w.Start + 4},
	}}
	svc, _ := newCoachFixture(acts, nil, nil, nil)

	signals, err := svc.DetectWeakBehavior(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("DetectWeakBehavior error: %v", err)
	}
	// 均值：visit 100, contact 100, approach 10 → 全体 70；10 < 35 只有 approach
	if len(signals) != 1 {
		t.Fatalf("signals=%d, want 1", len(signals))
	}
	if signals[0].Behavior != schema.BehaviorApproach || signals[0].Priority != schema.PriorityLow {
		t.Fatalf("unexpected signal: %+v", signals[0])
	}
}

// 单个检测器失败不得阻断其余检测器：竞品检测的客户列表读取失败时，
// 行为缺失信号仍应生成，错误汇入返回值
func TestDetectAllContinuesPastFailingDetector(t *testing.T) {
	ctx := context.Background()
	acts := &fakeActivityRepo{errOnDistinct: errors.New("storage unavailable")}
	svc, _ := newCoachFixture(acts, nil, nil, nil)

	signals, err := svc.DetectAll(ctx, 1, 0, weekWindow())
	if err == nil {
		t.Fatalf("expected joined error from failing detector")
	}
	if !strings.Contains(err.Error(), "competitor_activity") {
		t.Fatalf("error should name failing detector, got: %v", err)
	}
	// 空数据下行为缺失检测器照常产出 8 个分类的信号
	if len(signals) != 8 {
		t.Fatalf("signals=%d, want 8 from surviving detectors", len(signals))
	}
	for _, sig := range signals {
		if sig.Type != schema.SignalBehaviorLack {
			t.Fatalf("unexpected signal type %q", sig.Type)
		}
	}
}

func TestGenerateAndStorePersistsPartialResults(t *testing.T) {
	ctx := context.Background()
	acts := &fakeActivityRepo{errOnDistinct: errors.New("storage unavailable")}
	svc, signalRepo := newCoachFixture(acts, nil, nil, nil)

	batchID, signals, err := svc.GenerateAndStore(ctx, 1, 0, weekWindow())
	if err == nil {
		t.Fatalf("detect error should surface alongside results")
	}
	if batchID == "" || len(signals) != 8 {
		t.Fatalf("batch=%q signals=%d, want stamped batch with 8 signals", batchID, len(signals))
	}
	if len(signalRepo.inserted) != 8 {
		t.Fatalf("inserted=%d, want 8 despite detector failure", len(signalRepo.inserted))
	}
}

func TestGenerateAndStoreStampsBatchID(t *testing.T) {
	ctx := context.Background()
	svc, signalRepo := newCoachFixture(nil, nil, nil, nil)

	batchID, signals, err := svc.GenerateAndStore(ctx, 1, 0, weekWindow())
	if err != nil {
		t.Fatalf("GenerateAndStore error: %v", err)
	}
	if batchID == "" {
		t.Fatalf("batch id empty")
	}
	if len(signals) == 0 {
		t.Fatalf("expected behavior-lack signals on empty data")
	}
	if len(signalRepo.inserted) != len(signals) {
		t.Fatalf("inserted=%d, want %d", len(signalRepo.inserted), len(signals))
	}
	for _, sig := range signalRepo.inserted {
		if sig.BatchID != batchID {
			t.Fatalf("batch id mismatch: %q vs %q", sig.BatchID, batchID)
		}
	}
}
