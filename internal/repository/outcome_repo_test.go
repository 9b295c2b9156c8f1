package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"github.com/yuqie6/FieldMirror/internal/testutil"
)

func TestOutcomeRepositoryReplaceIsIdempotent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewOutcomeRepository(db)
	ctx := context.Background()

	now := time.Now()
	start := now.AddDate(0, 0, -7).UnixMilli()
	end := now.UnixMilli()

	result := schema.OutcomeResult{
		OwnerID:           1,
		PeriodType:        schema.PeriodWeekly,
		PeriodStart:       start,
		PeriodEnd:         end,
		AccountID:         10,
		ConversionRate:    42,
		FieldGrowthRate:   13.37,
		PrescriptionIndex: 55,
	}

	// 同一键重复写入两次，行数必须保持 1，内容以最后一次为准
	for i := 0; i < 2; i++ {
		r := result
		if err := repo.Replace(ctx, &r); err != nil {
			t.Fatalf("Replace #%d error: %v", i+1, err)
		}
	}

	count, err := repo.CountByKey(ctx, 1, schema.PeriodWeekly, start, end, 10)
	if err != nil {
		t.Fatalf("CountByKey error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count=%d, want 1", count)
	}

	got, err := repo.GetByKey(ctx, 1, schema.PeriodWeekly, start, end, 10)
	if err != nil || got == nil {
		t.Fatalf("GetByKey err=%v got=%v", err, got)
	}
	if got.ConversionRate != 42 || got.FieldGrowthRate != 13.37 {
		t.Fatalf("row content = %+v, want conversion=42 growth=13.37", got)
	}
}

func TestOutcomeRepositoryGetSeries(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewOutcomeRepository(db)
	ctx := context.Background()

	base := time.Now().AddDate(0, 0, -30)
	for week := 0; week < 3; week++ {
		start := base.AddDate(0, 0, week*7).UnixMilli()
		end := base.AddDate(0, 0, (week+1)*7).UnixMilli() - 1
		r := schema.OutcomeResult{
			OwnerID:        1,
			PeriodType:     schema.PeriodWeekly,
			PeriodStart:    start,
			PeriodEnd:      end,
			AccountID:      10,
			ConversionRate: float64(week * 10),
		}
		if err := repo.Replace(ctx, &r); err != nil {
			t.Fatalf("Replace error: %v", err)
		}
	}

	series, err := repo.GetSeries(ctx, 1, 10, schema.PeriodWeekly,
		base.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("GetSeries error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("len(series)=%d, want 3", len(series))
	}
	if series[0].PeriodStart > series[1].PeriodStart {
		t.Fatalf("series 未按周期起点升序")
	}
}
