package service

import (
	"context"
	"log/slog"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// AccountRollup 单个客户的汇总结果；Err 非空表示该客户计算失败
type AccountRollup struct {
	AccountID   int64                  `json:"account_id"`
	AccountName string                 `json:"account_name"`
	Scores      []schema.BehaviorScore `json:"scores,omitempty"`
	Consistency int                    `json:"consistency"`
	Outcome     *schema.OutcomeResult  `json:"outcome,omitempty"`
	Err         string                 `json:"error,omitempty"`
}

// TeamSummary 客户组合的折叠汇总
type TeamSummary struct {
	OwnerID        int64           `json:"owner_id"`
	Window         Window          `json:"window"`
	Rollups        []AccountRollup `json:"rollups"`
	Succeeded      int             `json:"succeeded"`
	Failed         int             `json:"failed"`
	AvgConsistency float64         `json:"avg_consistency"`
}

// TeamService 按客户列表扇出逐客户计算并折叠成汇总。
// 单个客户失败只记入该客户的 Err 字段并继续，不中断整批。
type TeamService struct {
	accountRepo AccountRepository
	behavior    *BehaviorScoreService
	consistency *ConsistencyService
	outcome     *OutcomeService
}

// NewTeamService 创建组合汇总服务
func NewTeamService(accountRepo AccountRepository, behavior *BehaviorScoreService, consistency *ConsistencyService, outcome *OutcomeService) *TeamService {
	return &TeamService{
		accountRepo: accountRepo,
		behavior:    behavior,
		consistency: consistency,
		outcome:     outcome,
	}
}

// Rollup 对 owner 名下全部客户逐一计算行为评分、BCR 与成果指标。
// 返回的汇总总是覆盖全部客户，失败的客户携带错误描述。
func (s *TeamService) Rollup(ctx context.Context, ownerID int64, periodType schema.PeriodType, w Window) (*TeamSummary, error) {
	const op = "team.rollup"
	if ownerID <= 0 {
		return nil, apperr.Unauthorized(op)
	}
	if !w.Valid() {
		return nil, apperr.Validation(op, "窗口非法: start=%d end=%d", w.Start, w.End)
	}

	accounts, err := s.accountRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Downstream(op, err)
	}

	summary := &TeamSummary{
		OwnerID: ownerID,
		Window:  w,
		Rollups: make([]AccountRollup, 0, len(accounts)),
	}

	consistencySum := 0
	for _, account := range accounts {
		rollup := s.rollupAccount(ctx, ownerID, account, periodType, w)
		if rollup.Err != "" {
			summary.Failed++
		} else {
			summary.Succeeded++
			consistencySum += rollup.Consistency
		}
		summary.Rollups = append(summary.Rollups, rollup)
	}

	if summary.Succeeded > 0 {
		summary.AvgConsistency = round2(float64(consistencySum) / float64(summary.Succeeded))
	}
	return summary, nil
}

func (s *TeamService) rollupAccount(ctx context.Context, ownerID int64, account schema.Account, periodType schema.PeriodType, w Window) AccountRollup {
	rollup := AccountRollup{AccountID: account.ID, AccountName: account.Name}

	scores, err := s.behavior.CalculateAndStore(ctx, ownerID, account.ID, w)
	if err != nil {
		slog.Warn("客户行为评分失败，跳过该客户", "owner", ownerID, "account", account.ID, "err", err)
		rollup.Err = err.Error()
		return rollup
	}
	rollup.Scores = scores

	bcr, err := s.consistency.Calculate(ctx, ownerID, account.ID, w)
	if err != nil {
		slog.Warn("客户一致率计算失败，跳过该客户", "owner", ownerID, "account", account.ID, "err", err)
		rollup.Err = err.Error()
		return rollup
	}
	rollup.Consistency = bcr

	result, err := s.outcome.ComputeAndStore(ctx, ownerID, account.ID, periodType, w)
	if err != nil {
		slog.Warn("客户成果指标计算失败，跳过该客户", "owner", ownerID, "account", account.ID, "err", err)
		rollup.Err = err.Error()
		return rollup
	}
	rollup.Outcome = result

	return rollup
}
