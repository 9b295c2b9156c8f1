package service

import (
	"context"
	"testing"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

const testBase = int64(1_700_000_000_000)

func weekWindow() Window {
	return Window{Start: testBase, End: testBase + 7*dayMs}
}

func TestBehaviorScoreEmptyWindowYieldsEightZeroedResults(t *testing.T) {
	ctx := context.Background()
	svc := NewBehaviorScoreService(&fakeActivityRepo{}, &fakeScoreRepo{}, nil)

	results, err := svc.Calculate(ctx, 1, 0, weekWindow())
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("len=%d, want 8", len(results))
	}
	for _, r := range results {
		if r.IntensityScore != 0 || r.DiversityScore != 0 || r.QualityScore != 0 {
			t.Fatalf("expected zeroed scores, got %+v", r)
		}
	}
}

func TestBehaviorScoreQualityFormula(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	// 两条满分 follow_up：质量 = round(100×0.4 + 100×0.3 + 100×0.3) = 100
	repo := &fakeActivityRepo{activities: []schema.Activity{
		{ID: 1, OwnerID: 1, AccountID: 2, Type: schema.ActivityFollowUp, Behavior: schema.BehaviorFollowUp, QualityScore: 100, QuantityScore: 100, PerformedAt: w.Start + dayMs},
		{ID: 2, OwnerID: 1, AccountID: 2, Type: schema.ActivityFollowUp, Behavior: schema.BehaviorFollowUp, QualityScore: 100, QuantityScore: 100, PerformedAt: w.Start + 2*dayMs},
	}}
	svc := NewBehaviorScoreService(repo, &fakeScoreRepo{}, nil)

	results, err := svc.Calculate(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	var followUp *schema.BehaviorScore
	for i := range results {
		if results[i].Behavior == schema.BehaviorFollowUp {
			followUp = &results[i]
		}
	}
	if followUp == nil {
		t.Fatalf("follow_up category missing from results")
	}
	if followUp.QualityScore != 100 {
		t.Fatalf("quality=%v, want 100", followUp.QualityScore)
	}
	// 强度：2 条 follow_up（权重 1）对基数 100 归一 → 2
	if followUp.IntensityScore != 2 {
		t.Fatalf("intensity=%v, want 2", followUp.IntensityScore)
	}
	// 覆盖分退化：单分类切片只会给出 1/8
	if followUp.DiversityScore != 12.5 {
		t.Fatalf("diversity=%v, want 12.5", followUp.DiversityScore)
	}
}

func TestBehaviorScoreSubscoresInRange(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	var activities []schema.Activity
	for i := 0; i < 60; i++ {
		category := schema.AllBehaviorCategories()[i%8]
		activities = append(activities, schema.Activity{
			ID: int64(i + 1), OwnerID: 1, AccountID: 3,
			Type: schema.ActivityVisit, Behavior: category,
			QualityScore: float64(i % 101), QuantityScore: float64((i * 7) % 101),
			PerformedAt: w.Start + int64(i)*dayMs/10,
		})
	}

	svc := NewBehaviorScoreService(&fakeActivityRepo{activities: activities}, &fakeScoreRepo{}, nil)
	results, err := svc.Calculate(ctx, 1, 0, w)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	for _, r := range results {
		for name, v := range map[string]float64{"intensity": r.IntensityScore, "diversity": r.DiversityScore, "quality": r.QualityScore} {
			if v < 0 || v > 100 {
				t.Fatalf("%s score out of range for %s: %v", name, r.Behavior, v)
			}
		}
	}
}

func TestBehaviorScoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := NewBehaviorScoreService(&fakeActivityRepo{}, &fakeScoreRepo{}, nil)

	if _, err := svc.Calculate(ctx, 0, 0, weekWindow()); err == nil {
		t.Fatalf("expected error for missing owner")
	}
	if _, err := svc.Calculate(ctx, 1, 0, Window{Start: 100, End: 50}); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestBehaviorScoreCalculateAndStoreReplaces(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()
	scoreRepo := &fakeScoreRepo{}
	svc := NewBehaviorScoreService(&fakeActivityRepo{}, scoreRepo, nil)

	if _, err := svc.CalculateAndStore(ctx, 1, 0, w); err != nil {
		t.Fatalf("first store error: %v", err)
	}
	if _, err := svc.CalculateAndStore(ctx, 1, 0, w); err != nil {
		t.Fatalf("second store error: %v", err)
	}
	if len(scoreRepo.scores) != 8 {
		t.Fatalf("stored=%d, want 8 (replace must not accumulate)", len(scoreRepo.scores))
	}
}
