package service

import (
	"context"
	"testing"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

func TestTeamRollupContinuesOnPerAccountFailure(t *testing.T) {
	ctx := context.Background()
	w := weekWindow()

	accounts := &fakeAccountRepo{accounts: map[int64]schema.Account{
		1: {ID: 1, OwnerID: 1, Name: "一院", Type: schema.AccountHospital},
		2: {ID: 2, OwnerID: 1, Name: "二诊所", Type: schema.AccountClinic},
		3: {ID: 3, OwnerID: 1, Name: "三药店", Type: schema.AccountPharmacy},
	}}
	// 客户 2 的活动查询注定失败
	acts := &fakeActivityRepo{
		errOnAccount: 2,
		activities: []schema.Activity{
			{ID: 1, OwnerID: 1, AccountID: 1, Behavior: schema.BehaviorVisit, QualityScore: 80, PerformedAt: w.Start + 1},
			{ID: 2, OwnerID: 1, AccountID: 3, Behavior: schema.BehaviorContact, QualityScore: 60, PerformedAt: w.Start + 2},
		},
	}

	scoreRepo := &fakeScoreRepo{}
	outcomeRepo := &fakeOutcomeRepo{}
	behavior := NewBehaviorScoreService(acts, scoreRepo, nil)
	consistency := NewConsistencyService(acts, scoreRepo, 30)
	outcome := NewOutcomeService(acts, &fakePrescriptionRepo{}, accounts, outcomeRepo, nil, nil)

	svc := NewTeamService(accounts, behavior, consistency, outcome)
	summary, err := svc.Rollup(ctx, 1, schema.PeriodWeekly, w)
	if err != nil {
		t.Fatalf("Rollup error: %v", err)
	}

	if len(summary.Rollups) != 3 {
		t.Fatalf("rollups=%d, want 3", len(summary.Rollups))
	}
	if summary.Failed != 1 || summary.Succeeded != 2 {
		t.Fatalf("succeeded=%d failed=%d, want 2/1", summary.Succeeded, summary.Failed)
	}
	for _, r := range summary.Rollups {
		if r.AccountID == 2 {
			if r.Err == "" {
				t.Fatalf("account 2 should carry an error")
			}
			continue
		}
		if r.Err != "" {
			t.Fatalf("account %d unexpectedly failed: %s", r.AccountID, r.Err)
		}
		if len(r.Scores) != 8 {
			t.Fatalf("account %d scores=%d, want 8", r.AccountID, len(r.Scores))
		}
		if r.Outcome == nil {
			t.Fatalf("account %d missing outcome", r.AccountID)
		}
	}
}

func TestTeamRollupRejectsMissingOwner(t *testing.T) {
	ctx := context.Background()
	svc := NewTeamService(&fakeAccountRepo{accounts: map[int64]schema.Account{}}, nil, nil, nil)

	if _, err := svc.Rollup(ctx, 0, schema.PeriodWeekly, weekWindow()); err == nil {
		t.Fatalf("expected unauthorized error")
	}
}
