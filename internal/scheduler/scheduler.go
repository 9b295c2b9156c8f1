package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yuqie6/FieldMirror/internal/eventbus"
	"github.com/yuqie6/FieldMirror/internal/schema"
	"github.com/yuqie6/FieldMirror/internal/service"
)

// Scheduler 周期性重算调度器
// 按 5 字段 cron 表达式（分 时 日 月 周）触发，每次对配置的 owner 做一轮：
// 行为评分 → 成果指标 → 全客户汇总 → 辅导信号。
type Scheduler struct {
	schedule cron.Schedule
	spec     string
	ownerID  int64

	behavior *service.BehaviorScoreService
	outcome  *service.OutcomeService
	team     *service.TeamService
	coach    *service.CoachService
	hub      *eventbus.Hub
}

// New 创建调度器。表达式非法时返回错误而不是静默停用。
func New(
	spec string,
	ownerID int64,
	behavior *service.BehaviorScoreService,
	outcome *service.OutcomeService,
	team *service.TeamService,
	coach *service.CoachService,
	hub *eventbus.Hub,
) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("解析 cron 表达式失败 %q: %w", spec, err)
	}
	if ownerID <= 0 {
		return nil, fmt.Errorf("调度器需要有效的 owner_id")
	}

	return &Scheduler{
		schedule: schedule,
		spec:     spec,
		ownerID:  ownerID,
		behavior: behavior,
		outcome:  outcome,
		team:     team,
		coach:    coach,
		hub:      hub,
	}, nil
}

// Start 启动调度循环，ctx 取消时退出
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("重算调度器启动", "cron", s.spec, "owner", s.ownerID)

	go func() {
		for {
			now := time.Now()
			next := s.schedule.Next(now)
			slog.Debug("下次重算", "at", next.Format("2006-01-02 15:04"))

			select {
			case <-ctx.Done():
				slog.Info("重算调度器退出")
				return
			case <-time.After(next.Sub(now)):
			}

			s.RunOnce(ctx)
		}
	}()
}

// RunOnce 立即执行一轮重算（调度触发与手动触发共用）
func (s *Scheduler) RunOnce(ctx context.Context) {
	started := time.Now()
	w := service.LastNDays(started, 7)

	if _, err := s.behavior.CalculateAndStore(ctx, s.ownerID, 0, w); err != nil {
		slog.Error("行为评分重算失败", "owner", s.ownerID, "err", err)
	}

	// 日/周/月三种粒度各算一份，互不覆盖（period_type 参与幂等键）
	outcomeWindows := []struct {
		periodType schema.PeriodType
		window     service.Window
	}{
		{schema.PeriodDaily, service.LastNDays(started, 1)},
		{schema.PeriodWeekly, w},
		{schema.PeriodMonthly, service.LastNDays(started, 30)},
	}
	for _, ow := range outcomeWindows {
		if _, err := s.outcome.ComputeAndStore(ctx, s.ownerID, 0, ow.periodType, ow.window); err != nil {
			slog.Error("成果指标重算失败", "owner", s.ownerID, "period_type", ow.periodType, "err", err)
			continue
		}
		s.hub.Publish(eventbus.Event{
			Type: service.EventOutcomeUpdated,
			Data: map[string]any{
				"owner":        s.ownerID,
				"period_type":  string(ow.periodType),
				"period_start": ow.window.Start,
				"period_end":   ow.window.End,
			},
		})
	}

	if summary, err := s.team.Rollup(ctx, s.ownerID, schema.PeriodWeekly, w); err != nil {
		slog.Error("客户汇总重算失败", "owner", s.ownerID, "err", err)
	} else if summary.Failed > 0 {
		slog.Warn("客户汇总部分失败", "owner", s.ownerID, "failed", summary.Failed, "succeeded", summary.Succeeded)
	}

	if _, _, err := s.coach.GenerateAndStore(ctx, s.ownerID, 0, w); err != nil {
		slog.Error("辅导信号生成失败", "owner", s.ownerID, "err", err)
	}

	slog.Info("周期重算完成", "owner", s.ownerID, "took", time.Since(started).Round(time.Millisecond))
}
