package service

import (
	"context"
	"math"
	"testing"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// 三个连续周窗口，行为分与成果按同键对齐
func seedCorrelationData(scoreRepo *fakeScoreRepo, outcomeRepo *fakeOutcomeRepo) []Window {
	periods := []Window{
		{Start: testBase, End: testBase + 7*dayMs},
		{Start: testBase + 8*dayMs, End: testBase + 15*dayMs},
		{Start: testBase + 16*dayMs, End: testBase + 23*dayMs},
	}

	visit := []float64{10, 20, 30}
	contact := []float64{30, 20, 10}
	conversion := []float64{5, 10, 15}

	for i, p := range periods {
		scoreRepo.scores = append(scoreRepo.scores,
			schema.BehaviorScore{OwnerID: 1, Behavior: schema.BehaviorVisit, QualityScore: visit[i], PeriodStart: p.Start, PeriodEnd: p.End},
			schema.BehaviorScore{OwnerID: 1, Behavior: schema.BehaviorContact, QualityScore: contact[i], PeriodStart: p.Start, PeriodEnd: p.End},
		)
		outcomeRepo.results = append(outcomeRepo.results, schema.OutcomeResult{
			OwnerID: 1, PeriodType: schema.PeriodWeekly, PeriodStart: p.Start, PeriodEnd: p.End,
			ConversionRate: conversion[i],
		})
	}

	// presentation 只有一个周期，样本不足，应整体缺席
	scoreRepo.scores = append(scoreRepo.scores, schema.BehaviorScore{
		OwnerID: 1, Behavior: schema.BehaviorPresentation, QualityScore: 42,
		PeriodStart: periods[0].Start, PeriodEnd: periods[0].End,
	})

	return periods
}

func TestCorrelationIdenticalAndNegatedSeries(t *testing.T) {
	ctx := context.Background()
	scoreRepo := &fakeScoreRepo{}
	outcomeRepo := &fakeOutcomeRepo{}
	periods := seedCorrelationData(scoreRepo, outcomeRepo)

	svc := NewCorrelationService(scoreRepo, outcomeRepo)
	report, err := svc.Analyze(ctx, 1, 0, schema.PeriodWeekly, periods[0].Start, periods[2].End)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	find := func(b schema.BehaviorCategory, o schema.OutcomeType) *CorrelationRecord {
		for i := range report.Records {
			if report.Records[i].Behavior == b && report.Records[i].Outcome == o {
				return &report.Records[i]
			}
		}
		return nil
	}

	visitRec := find(schema.BehaviorVisit, schema.OutcomeTypeConversionRate)
	if visitRec == nil {
		t.Fatalf("visit×conversion record missing")
	}
	if math.Abs(visitRec.Correlation-1.0) > 1e-9 {
		t.Fatalf("visit r=%v, want 1.0", visitRec.Correlation)
	}

	contactRec := find(schema.BehaviorContact, schema.OutcomeTypeConversionRate)
	if contactRec == nil {
		t.Fatalf("contact×conversion record missing")
	}
	if math.Abs(contactRec.Correlation+1.0) > 1e-9 {
		t.Fatalf("contact r=%v, want -1.0", contactRec.Correlation)
	}
}

func TestCorrelationSkipsUnderSampledPairs(t *testing.T) {
	ctx := context.Background()
	scoreRepo := &fakeScoreRepo{}
	outcomeRepo := &fakeOutcomeRepo{}
	periods := seedCorrelationData(scoreRepo, outcomeRepo)

	svc := NewCorrelationService(scoreRepo, outcomeRepo)
	report, err := svc.Analyze(ctx, 1, 0, schema.PeriodWeekly, periods[0].Start, periods[2].End)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	for _, r := range report.Records {
		if r.Behavior == schema.BehaviorPresentation {
			t.Fatalf("presentation has only 1 paired point, must be excluded: %+v", r)
		}
		if r.SampleSize < 2 {
			t.Fatalf("record with sample_size<2 leaked: %+v", r)
		}
	}
}

func TestCorrelationTopThreeRanking(t *testing.T) {
	ctx := context.Background()
	scoreRepo := &fakeScoreRepo{}
	outcomeRepo := &fakeOutcomeRepo{}
	periods := seedCorrelationData(scoreRepo, outcomeRepo)

	svc := NewCorrelationService(scoreRepo, outcomeRepo)
	report, err := svc.Analyze(ctx, 1, 0, schema.PeriodWeekly, periods[0].Start, periods[2].End)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	top := report.Top[schema.OutcomeTypeConversionRate]
	if len(top) != 2 {
		t.Fatalf("top len=%d, want 2 (only two categories have enough samples)", len(top))
	}
	for _, tb := range top {
		if math.Abs(tb.Weight-1.0) > 1e-9 {
			t.Fatalf("weight=%v, want 1.0", tb.Weight)
		}
	}
	// 权重并列时保持枚举顺序：contact 在 visit 之前
	if top[0].Behavior != schema.BehaviorContact || top[1].Behavior != schema.BehaviorVisit {
		t.Fatalf("tie order unexpected: %+v", top)
	}
}

func TestCorrelationEmptyInputYieldsEmptyReport(t *testing.T) {
	ctx := context.Background()
	svc := NewCorrelationService(&fakeScoreRepo{}, &fakeOutcomeRepo{})

	report, err := svc.Analyze(ctx, 1, 0, schema.PeriodWeekly, testBase, testBase+30*dayMs)
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if len(report.Records) != 0 || len(report.Top) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
