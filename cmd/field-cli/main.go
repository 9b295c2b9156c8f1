package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuqie6/FieldMirror/internal/bootstrap"
	"github.com/yuqie6/FieldMirror/internal/pkg/buildinfo"
	"github.com/yuqie6/FieldMirror/internal/repository"
	"github.com/yuqie6/FieldMirror/internal/schema"
	"github.com/yuqie6/FieldMirror/internal/service"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "field",
		Short: "FieldMirror - 销售行为-成果评分与辅导信号引擎",
		Long:  `FieldMirror 在本地量化销售拜访行为，计算成果指标与行为-成果关联，并给出规则化的辅导信号。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(scoresCmd())
	rootCmd.AddCommand(bcrCmd())
	rootCmd.AddCommand(outcomesCmd())
	rootCmd.AddCommand(correlationsCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(rollupCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		// 不加载配置与数据库
		PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FieldMirror %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		},
	}
}

// windowFlags 公共的 owner/account/窗口参数
type windowFlags struct {
	ownerID   int64
	accountID int64
	days      int
	date      string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.ownerID, "owner", 0, "销售 ID")
	cmd.Flags().Int64Var(&f.accountID, "account", 0, "客户 ID（0 表示全部客户）")
	cmd.Flags().IntVar(&f.days, "days", 7, "统计窗口天数（截至当前时刻）")
	cmd.Flags().StringVar(&f.date, "date", "", "只看指定日期 (YYYY-MM-DD)，优先于 --days")
}

func (f *windowFlags) window() service.Window {
	if f.date != "" {
		start, end, err := repository.DayRange(f.date)
		if err != nil {
			fail("日期参数无效: %v", err)
		}
		return service.Window{Start: start, End: end}
	}
	return service.LastNDays(time.Now(), f.days)
}

func fail(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}

func scoresCmd() *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "计算并存储八类行为评分",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			scores, err := core.Services.Behavior.CalculateAndStore(ctx, flags.ownerID, flags.accountID, w)
			if err != nil {
				fail("行为评分失败: %v", err)
			}

			fmt.Printf("📊 行为评分（最近 %d 天）\n", flags.days)
			fmt.Println("═══════════════════════════════════════")
			for _, s := range scores {
				fmt.Printf("  %-12s 强度 %5.0f  多样性 %5.1f  质量 %5.0f\n",
					schema.BehaviorCategoryName(s.Behavior), s.IntensityScore, s.DiversityScore, s.QualityScore)
			}
		},
	}

	flags.register(cmd)
	return cmd
}

func bcrCmd() *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "bcr",
		Short: "计算行为一致率",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			score, err := core.Services.Consistency.Calculate(ctx, flags.ownerID, flags.accountID, w)
			if err != nil {
				fail("行为一致率计算失败: %v", err)
			}
			fmt.Printf("📈 行为一致率（最近 %d 天）: %d / 100\n", flags.days, score)
		},
	}

	flags.register(cmd)
	return cmd
}

func outcomesCmd() *cobra.Command {
	var flags windowFlags
	var periodType string

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "计算并存储成果指标",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			result, err := core.Services.Outcome.ComputeAndStore(ctx, flags.ownerID, flags.accountID, schema.PeriodType(periodType), w)
			if err != nil {
				fail("成果指标计算失败: %v", err)
			}

			fmt.Printf("🎯 成果指标（最近 %d 天）\n", flags.days)
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  HIR 分值:   %.2f\n", result.HIRScore)
			fmt.Printf("  转化率:     %.2f\n", result.ConversionRate)
			fmt.Printf("  实地增长率: %.2f\n", result.FieldGrowthRate)
			fmt.Printf("  处方指数:   %.2f\n", result.PrescriptionIndex)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&periodType, "period", string(schema.PeriodWeekly), "周期类型 (daily/weekly/monthly/custom)")
	return cmd
}

func correlationsCmd() *cobra.Command {
	var flags windowFlags
	var periodType string

	cmd := &cobra.Command{
		Use:   "correlations",
		Short: "分析行为-成果关联并列出各成果的 Top 行为",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			report, err := core.Services.Correlation.Analyze(ctx, flags.ownerID, flags.accountID, schema.PeriodType(periodType), w.Start, w.End)
			if err != nil {
				fail("关联分析失败: %v", err)
			}

			if len(report.Records) == 0 {
				fmt.Println("📚 样本不足，暂无可用的关联结果（每对至少需要 2 个周期）")
				return
			}

			fmt.Printf("🔍 行为-成果关联（最近 %d 天，按 %s 对齐）\n", flags.days, periodType)
			fmt.Println("═══════════════════════════════════════")
			for outcome, tops := range report.Top {
				fmt.Printf("\n  %s 的 Top 行为:\n", outcome)
				for i, tb := range tops {
					fmt.Printf("    %d. %-12s r=%+.3f 权重=%.3f\n",
						i+1, schema.BehaviorCategoryName(tb.Behavior), tb.Correlation, tb.Weight)
				}
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&periodType, "period", string(schema.PeriodWeekly), "对齐周期类型")
	return cmd
}

func signalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "辅导信号管理",
	}
	cmd.AddCommand(signalsListCmd())
	cmd.AddCommand(signalsDetectCmd())
	cmd.AddCommand(signalsResolveCmd())
	return cmd
}

func signalsListCmd() *cobra.Command {
	var ownerID int64
	var unresolvedOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "查看辅导信号",
		Run: func(cmd *cobra.Command, args []string) {
			signals, err := core.Repos.Signal.ListByOwner(context.Background(), ownerID, unresolvedOnly, limit)
			if err != nil {
				fail("查询信号失败: %v", err)
			}
			if len(signals) == 0 {
				fmt.Println("📚 暂无辅导信号")
				return
			}

			fmt.Printf("🔔 辅导信号 (%d 条)\n", len(signals))
			fmt.Println("═══════════════════════════════════════")
			for _, s := range signals {
				mark := " "
				if s.Resolved {
					mark = "✓"
				}
				fmt.Printf("  [%s] #%-4d %-8s %-22s %s\n", mark, s.ID, s.Priority, s.Type, s.Message)
				if s.Action != "" {
					fmt.Printf("          建议: %s\n", s.Action)
				}
			}
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "销售 ID")
	cmd.Flags().BoolVar(&unresolvedOnly, "unresolved", false, "只看未消解的信号")
	cmd.Flags().IntVar(&limit, "limit", 50, "最大条数")
	return cmd
}

func signalsDetectCmd() *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "运行全部检测器并生成新一批信号",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			batchID, signals, err := core.Services.Coach.GenerateAndStore(ctx, flags.ownerID, flags.accountID, w)
			if err != nil && len(signals) == 0 {
				fail("信号检测失败: %v", err)
			}
			if err != nil {
				fmt.Printf("⚠️  部分检测器失败: %v\n", err)
			}

			fmt.Printf("✅ 检测完成，批次 %s，新增信号 %d 条\n", batchID, len(signals))
			for _, s := range signals {
				fmt.Printf("  • [%s] %s: %s\n", s.Priority, s.Type, s.Message)
			}
		},
	}

	flags.register(cmd)
	return cmd
}

func signalsResolveCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "人工消解指定信号",
		Run: func(cmd *cobra.Command, args []string) {
			if id <= 0 {
				fail("请通过 --id 指定信号 ID")
			}
			if err := core.Repos.Signal.Resolve(context.Background(), id); err != nil {
				fail("消解信号失败: %v", err)
			}
			fmt.Printf("✅ 信号 #%d 已消解\n", id)
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "信号 ID")
	return cmd
}

func rollupCmd() *cobra.Command {
	var flags windowFlags
	var periodType string

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "对名下全部客户逐一重算并汇总",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			summary, err := core.Services.Team.Rollup(ctx, flags.ownerID, schema.PeriodType(periodType), w)
			if err != nil {
				fail("客户汇总失败: %v", err)
			}

			fmt.Printf("👥 客户汇总（最近 %d 天）: 成功 %d / 失败 %d，平均一致率 %.1f\n",
				flags.days, summary.Succeeded, summary.Failed, summary.AvgConsistency)
			for _, r := range summary.Rollups {
				if r.Err != "" {
					fmt.Printf("  ✗ %-20s %s\n", r.AccountName, r.Err)
					continue
				}
				fmt.Printf("  ✓ %-20s 一致率 %3d", r.AccountName, r.Consistency)
				if r.Outcome != nil {
					fmt.Printf("  转化率 %.1f  处方指数 %.1f", r.Outcome.ConversionRate, r.Outcome.PrescriptionIndex)
				}
				fmt.Println()
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&periodType, "period", string(schema.PeriodWeekly), "周期类型")
	return cmd
}

func exportCmd() *cobra.Command {
	var flags windowFlags
	var periodType string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出成果指标与辅导信号的 Excel 报表",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			path, err := core.Services.Export.Export(ctx, flags.ownerID, flags.accountID, schema.PeriodType(periodType), w.Start, w.End)
			if err != nil {
				fail("导出报表失败: %v", err)
			}
			fmt.Printf("✅ 报表已导出: %s\n", path)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&periodType, "period", string(schema.PeriodWeekly), "周期类型")
	return cmd
}

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "活动备注的语义索引与检索",
	}
	cmd.AddCommand(notesSearchCmd())
	cmd.AddCommand(notesReindexCmd())
	return cmd
}

func notesSearchCmd() *cobra.Command {
	var ownerID int64
	var topK int

	cmd := &cobra.Command{
		Use:   "search [查询文本]",
		Short: "语义检索活动备注",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			query := args[0]

			results, err := core.Services.NoteIndex.Query(context.Background(), ownerID, query, topK)
			if err != nil {
				fail("备注检索失败: %v", err)
			}
			if len(results) == 0 {
				fmt.Println("📚 没有匹配的备注（先执行 'field notes reindex' 建立索引）")
				return
			}

			fmt.Printf("🔍 备注检索: %q\n", query)
			for _, r := range results {
				fmt.Printf("  • [%.3f] %s %s (客户 %s): %s\n", r.Similarity, r.Date, r.Behavior, r.AccountID, r.Content)
			}
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "销售 ID")
	cmd.Flags().IntVar(&topK, "top", 5, "返回条数")
	return cmd
}

func notesReindexCmd() *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "把窗口内的活动备注批量写入语义索引",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			w := flags.window()

			var activities []schema.Activity
			var err error
			if flags.accountID > 0 {
				activities, err = core.Repos.Activity.GetByAccountAndTimeRange(ctx, flags.ownerID, flags.accountID, w.Start, w.End)
			} else {
				activities, err = core.Repos.Activity.GetByOwnerAndTimeRange(ctx, flags.ownerID, w.Start, w.End)
			}
			if err != nil {
				fail("读取活动失败: %v", err)
			}

			indexed := core.Services.NoteIndex.IndexBatch(ctx, activities)
			fmt.Printf("✅ 扫描 %d 条活动，新索引 %d 条备注\n", len(activities), indexed)
		},
	}

	flags.register(cmd)
	return cmd
}
