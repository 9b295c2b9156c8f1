package service

import (
	"context"
	"fmt"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// 共享的内存版仓储假件，按时间/归属字段过滤，行为与真实仓储保持一致

type fakeActivityRepo struct {
	activities    []schema.Activity
	err           error
	errOnAccount  int64 // 非 0 时，针对该客户的查询返回错误
	errOnDistinct error // 非 nil 时，仅 DistinctAccountIDs 返回错误
}

func (f *fakeActivityRepo) GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []schema.Activity
	for _, a := range f.activities {
		if a.OwnerID == ownerID && a.PerformedAt >= startTime && a.PerformedAt <= endTime {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.errOnAccount != 0 && accountID == f.errOnAccount {
		return nil, fmt.Errorf("storage unavailable for account %d", accountID)
	}
	var out []schema.Activity
	for _, a := range f.activities {
		if a.OwnerID == ownerID && a.AccountID == accountID && a.PerformedAt >= startTime && a.PerformedAt <= endTime {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) DistinctAccountIDs(ctx context.Context, ownerID, startTime, endTime int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.errOnDistinct != nil {
		return nil, f.errOnDistinct
	}
	seen := make(map[int64]struct{})
	var out []int64
	for _, a := range f.activities {
		if a.OwnerID != ownerID || a.PerformedAt < startTime || a.PerformedAt > endTime {
			continue
		}
		if _, ok := seen[a.AccountID]; ok {
			continue
		}
		seen[a.AccountID] = struct{}{}
		out = append(out, a.AccountID)
	}
	return out, nil
}

type fakePrescriptionRepo struct {
	prescriptions []schema.Prescription
	err           error
}

func (f *fakePrescriptionRepo) GetByOwnerAndTimeRange(ctx context.Context, ownerID, startTime, endTime int64) ([]schema.Prescription, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []schema.Prescription
	for _, p := range f.prescriptions {
		if p.OwnerID == ownerID && p.PrescribedAt >= startTime && p.PrescribedAt <= endTime {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrescriptionRepo) GetByAccountAndTimeRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.Prescription, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []schema.Prescription
	for _, p := range f.prescriptions {
		if p.OwnerID == ownerID && p.AccountID == accountID && p.PrescribedAt >= startTime && p.PrescribedAt <= endTime {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAccountRepo struct {
	accounts map[int64]schema.Account
}

func (f *fakeAccountRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]schema.Account, error) {
	out := make(map[int64]schema.Account)
	for _, id := range ids {
		if a, ok := f.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListByOwner(ctx context.Context, ownerID int64) ([]schema.Account, error) {
	var out []schema.Account
	for _, a := range f.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeScoreRepo struct {
	scores []schema.BehaviorScore
}

func (f *fakeScoreRepo) ReplaceForPeriod(ctx context.Context, ownerID, accountID, periodStart, periodEnd int64, scores []schema.BehaviorScore) error {
	kept := f.scores[:0]
	for _, s := range f.scores {
		if s.OwnerID == ownerID && s.AccountID == accountID && s.PeriodStart == periodStart && s.PeriodEnd == periodEnd {
			continue
		}
		kept = append(kept, s)
	}
	f.scores = append(kept, scores...)
	return nil
}

func (f *fakeScoreRepo) GetByAccountAndRange(ctx context.Context, ownerID, accountID, startTime, endTime int64) ([]schema.BehaviorScore, error) {
	var out []schema.BehaviorScore
	for _, s := range f.scores {
		if s.OwnerID == ownerID && s.AccountID == accountID && s.PeriodStart >= startTime && s.PeriodEnd <= endTime {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeOutcomeRepo struct {
	results []schema.OutcomeResult
}

func (f *fakeOutcomeRepo) Replace(ctx context.Context, result *schema.OutcomeResult) error {
	kept := f.results[:0]
	for _, r := range f.results {
		if r.OwnerID == result.OwnerID && r.PeriodType == result.PeriodType &&
			r.PeriodStart == result.PeriodStart && r.PeriodEnd == result.PeriodEnd &&
			r.AccountID == result.AccountID {
			continue
		}
		kept = append(kept, r)
	}
	f.results = append(kept, *result)
	return nil
}

func (f *fakeOutcomeRepo) GetSeries(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, startTime, endTime int64) ([]schema.OutcomeResult, error) {
	var out []schema.OutcomeResult
	for _, r := range f.results {
		if r.OwnerID == ownerID && r.AccountID == accountID && r.PeriodType == periodType &&
			r.PeriodStart >= startTime && r.PeriodEnd <= endTime {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSignalRepo struct {
	inserted []schema.CoachingSignal
}

func (f *fakeSignalRepo) BatchInsert(ctx context.Context, signals []schema.CoachingSignal) error {
	f.inserted = append(f.inserted, signals...)
	return nil
}

type fakeCompetitorRepo struct {
	records []schema.CompetitorSignal
}

func (f *fakeCompetitorRepo) GetByAccountsAndRange(ctx context.Context, accountIDs []int64, startTime, endTime int64) ([]schema.CompetitorSignal, error) {
	in := make(map[int64]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		in[id] = struct{}{}
	}
	var out []schema.CompetitorSignal
	for _, r := range f.records {
		if _, ok := in[r.AccountID]; !ok {
			continue
		}
		if r.DetectedAt >= startTime && r.DetectedAt <= endTime {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMetrics struct {
	hir float64
}

func (f fakeMetrics) CalculateHIR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error) {
	return f.hir, nil
}
func (f fakeMetrics) CalculateRTR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error) {
	return 0, nil
}
func (f fakeMetrics) CalculatePHR(ctx context.Context, ownerID, accountID int64, w Window) (float64, error) {
	return 0, nil
}
