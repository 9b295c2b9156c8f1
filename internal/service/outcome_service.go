package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// OutcomeService 周期成果指标计算
// 四个指标共用同一模式：取当前窗口，取等长（或按模式指定的）对比窗口，合成增量。
type OutcomeService struct {
	activityRepo     ActivityRepository
	prescriptionRepo PrescriptionRepository
	accountRepo      AccountRepository
	outcomeRepo      OutcomeRepository
	metrics          ExternalMetrics
	policy           *ScoringPolicy
}

// NewOutcomeService 创建成果指标服务。metrics 可为 nil（HIR 记 0）。
func NewOutcomeService(
	activityRepo ActivityRepository,
	prescriptionRepo PrescriptionRepository,
	accountRepo AccountRepository,
	outcomeRepo OutcomeRepository,
	metrics ExternalMetrics,
	policy *ScoringPolicy,
) *OutcomeService {
	if policy == nil {
		policy = DefaultScoringPolicy()
	}
	return &OutcomeService{
		activityRepo:     activityRepo,
		prescriptionRepo: prescriptionRepo,
		accountRepo:      accountRepo,
		outcomeRepo:      outcomeRepo,
		metrics:          metrics,
		policy:           policy,
	}
}

// ConversionRate 转化率：0.7×处方量环比增长 + 0.3×活动转化占比，[-100,100] 取整。
// 当前窗口无活动且无处方时返回 0。
func (s *OutcomeService) ConversionRate(ctx context.Context, ownerID, accountID int64, w Window) (float64, error) {
	const op = "outcome.conversion_rate"
	if ownerID <= 0 {
		return 0, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return 0, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	currPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, w)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	currActs, err := s.fetchActivities(ctx, ownerID, accountID, w)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	if len(currPres) == 0 && len(currActs) == 0 {
		return 0, nil
	}

	prevPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, w.Previous())
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}

	quantityGrowth := growthPct(quantitySum(currPres), quantitySum(prevPres))

	// 活动转化占比：当前窗口内有处方弱关联回指的活动比例
	conversionRatio := 0.0
	if len(currActs) > 0 {
		related := make(map[int64]struct{})
		for _, p := range currPres {
			if p.RelatedActivityID > 0 {
				related[p.RelatedActivityID] = struct{}{}
			}
		}
		converted := 0
		for _, a := range currActs {
			if _, ok := related[a.ID]; ok {
				converted++
			}
		}
		conversionRatio = float64(converted) / float64(len(currActs)) * 100
	}

	rate := 0.7*quantityGrowth + 0.3*conversionRatio
	return clamp(math.Round(rate), -100, 100), nil
}

// FieldGrowthRate 实地增长率：0.6×处方量增长 + 0.4×销售额增长，保留两位小数，无界。
// 对比窗口可按 previous_month / previous_year / custom 选择，默认紧邻等长窗口。
func (s *OutcomeService) FieldGrowthRate(ctx context.Context, ownerID, accountID int64, w Window, mode ComparisonMode, custom Window) (float64, error) {
	const op = "outcome.field_growth_rate"
	if ownerID <= 0 {
		return 0, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return 0, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}
	if mode == CompareCustom && !custom.Valid() {
		return 0, apperr.Validation(op, "custom 对比窗口非法: start=%d end=%d", custom.Start, custom.End)
	}

	currPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, w)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	if len(currPres) == 0 {
		return 0, nil
	}

	comparison := ComparisonWindow(w, mode, custom)
	prevPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, comparison)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}

	quantityGrowth := growthPct(quantitySum(currPres), quantitySum(prevPres))
	revenueGrowth := growthPct(revenueSum(currPres), revenueSum(prevPres))

	return round2(0.6*quantityGrowth + 0.4*revenueGrowth), nil
}

// PrescriptionIndex 处方指数：客户类型与价格加权的处方量，对启发式上限归一化，
// 与环比增长合成，[0,100] 取整。当前窗口无处方返回 0。
func (s *OutcomeService) PrescriptionIndex(ctx context.Context, ownerID, accountID int64, w Window) (float64, error) {
	const op = "outcome.prescription_index"
	if ownerID <= 0 {
		return 0, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return 0, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	currPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, w)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	if len(currPres) == 0 {
		return 0, nil
	}

	accountIDs := distinctPrescriptionAccounts(currPres)
	accounts, err := s.accountRepo.GetByIDs(ctx, accountIDs)
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}

	var weightedQty, totalQty float64
	for _, p := range currPres {
		accountType := schema.AccountClinic
		if a, ok := accounts[p.AccountID]; ok {
			accountType = a.Type
		}
		weightedQty += p.Quantity * s.policy.AccountWeight(accountType) * s.policy.PriceWeight(p.Price)
		totalQty += p.Quantity
	}

	// 启发式上限：平均单张处方量 × 倍率 × 张数
	count := float64(len(currPres))
	ceiling := totalQty / count * s.policy.QuantityCeilingFactor * count
	normalizedQty := 0.0
	if ceiling > 0 {
		normalizedQty = clamp(weightedQty/ceiling*100, 0, 100)
	}

	prevPres, err := s.fetchPrescriptions(ctx, ownerID, accountID, w.Previous())
	if err != nil {
		return 0, apperr.Downstream(op, err)
	}
	normalizedGrowth := clamp(growthPct(totalQty, quantitySum(prevPres))+50, 0, 100)

	index := math.Round(0.7*normalizedQty + 0.3*normalizedGrowth)
	return clamp(index, 0, 100), nil
}

// ComputeAndStore 计算四项指标并以删除后插入方式落库（幂等替换）。
func (s *OutcomeService) ComputeAndStore(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, w Window) (*schema.OutcomeResult, error) {
	const op = "outcome.compute_and_store"

	conversion, err := s.ConversionRate(ctx, ownerID, accountID, w)
	if err != nil {
		return nil, err
	}
	growth, err := s.FieldGrowthRate(ctx, ownerID, accountID, w, ComparePrevious, Window{})
	if err != nil {
		return nil, err
	}
	index, err := s.PrescriptionIndex(ctx, ownerID, accountID, w)
	if err != nil {
		return nil, err
	}

	hir := 0.0
	if s.metrics != nil {
		hir, err = s.metrics.CalculateHIR(ctx, ownerID, accountID, w)
		if err != nil {
			return nil, apperr.Downstream("outcome.hir", err)
		}
	}

	result := &schema.OutcomeResult{
		OwnerID:           ownerID,
		PeriodType:        periodType,
		PeriodStart:       w.Start,
		PeriodEnd:         w.End,
		AccountID:         accountID,
		HIRScore:          hir,
		ConversionRate:    conversion,
		FieldGrowthRate:   growth,
		PrescriptionIndex: index,
	}

	if err := s.outcomeRepo.Replace(ctx, result); err != nil {
		return nil, apperr.Downstream(op, err)
	}

	slog.Info("成果指标已更新",
		"owner", ownerID, "account", accountID, "period_type", periodType,
		"conversion", conversion, "growth", growth, "prescription_index", index)
	return result, nil
}

func (s *OutcomeService) fetchActivities(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.Activity, error) {
	if accountID > 0 {
		return s.activityRepo.GetByAccountAndTimeRange(ctx, ownerID, accountID, w.Start, w.End)
	}
	return s.activityRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
}

func (s *OutcomeService) fetchPrescriptions(ctx context.Context, ownerID, accountID int64, w Window) ([]schema.Prescription, error) {
	if accountID > 0 {
		return s.prescriptionRepo.GetByAccountAndTimeRange(ctx, ownerID, accountID, w.Start, w.End)
	}
	return s.prescriptionRepo.GetByOwnerAndTimeRange(ctx, ownerID, w.Start, w.End)
}

func quantitySum(ps []schema.Prescription) float64 {
	sum := 0.0
	for _, p := range ps {
		sum += p.Quantity
	}
	return sum
}

func revenueSum(ps []schema.Prescription) float64 {
	sum := 0.0
	for _, p := range ps {
		sum += p.Quantity * p.Price
	}
	return sum
}

func distinctPrescriptionAccounts(ps []schema.Prescription) []int64 {
	seen := make(map[int64]struct{}, len(ps))
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		if _, ok := seen[p.AccountID]; ok {
			continue
		}
		seen[p.AccountID] = struct{}{}
		out = append(out, p.AccountID)
	}
	return out
}
