package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/yuqie6/FieldMirror/internal/pkg/apperr"
	"github.com/yuqie6/FieldMirror/internal/schema"
)

// ReportExportService 导出周期报表（xlsx）
// 两张工作表：成果指标序列 + 辅导信号清单。
type ReportExportService struct {
	outcomeRepo OutcomeRepository
	signalRepo  SignalReader
	outputDir   string
}

// SignalReader 报表导出需要的信号读取口
type SignalReader interface {
	ListByOwner(ctx context.Context, ownerID int64, unresolvedOnly bool, limit int) ([]schema.CoachingSignal, error)
}

// NewReportExportService 创建报表导出服务
func NewReportExportService(outcomeRepo OutcomeRepository, signalRepo SignalReader, outputDir string) *ReportExportService {
	if outputDir == "" {
		outputDir = "./data/reports"
	}
	return &ReportExportService{
		outcomeRepo: outcomeRepo,
		signalRepo:  signalRepo,
		outputDir:   outputDir,
	}
}

const (
	sheetOutcomes = "成果指标"
	sheetSignals  = "辅导信号"
)

// Export 生成报表文件并返回落盘路径
func (s *ReportExportService) Export(ctx context.Context, ownerID, accountID int64, periodType schema.PeriodType, rangeStart, rangeEnd int64) (string, error) {
	const op = "report.export"
	if ownerID <= 0 {
		return "", apperr.Unauthorized(op)
	}
	if rangeStart > rangeEnd {
		return "", apperr.Validation(op, "区间非法: start=%d end=%d", rangeStart, rangeEnd)
	}

	outcomes, err := s.outcomeRepo.GetSeries(ctx, ownerID, accountID, periodType, rangeStart, rangeEnd)
	if err != nil {
		return "", apperr.Downstream(op, err)
	}
	signals, err := s.signalRepo.ListByOwner(ctx, ownerID, false, 500)
	if err != nil {
		return "", apperr.Downstream(op, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetOutcomes)
	if err := writeOutcomeSheet(f, outcomes); err != nil {
		return "", apperr.Downstream(op, err)
	}

	if _, err := f.NewSheet(sheetSignals); err != nil {
		return "", apperr.Downstream(op, err)
	}
	if err := writeSignalSheet(f, signals); err != nil {
		return "", apperr.Downstream(op, err)
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", apperr.Downstream(op, fmt.Errorf("创建导出目录失败: %w", err))
	}

	name := fmt.Sprintf("report_%d_%s_%s.xlsx", ownerID, time.Now().Format("20060102"), uuid.NewString()[:8])
	path := filepath.Join(s.outputDir, name)
	if err := f.SaveAs(path); err != nil {
		return "", apperr.Downstream(op, fmt.Errorf("保存报表失败: %w", err))
	}
	return path, nil
}

func writeOutcomeSheet(f *excelize.File, outcomes []schema.OutcomeResult) error {
	headers := []string{"周期开始", "周期结束", "客户ID", "HIR", "转化率", "实地增长率", "处方指数"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetOutcomes, cell, h); err != nil {
			return fmt.Errorf("写表头失败: %w", err)
		}
	}

	for row, o := range outcomes {
		values := []any{
			time.UnixMilli(o.PeriodStart).Format("2006-01-02"),
			time.UnixMilli(o.PeriodEnd).Format("2006-01-02"),
			o.AccountID,
			o.HIRScore,
			o.ConversionRate,
			o.FieldGrowthRate,
			o.PrescriptionIndex,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetOutcomes, cell, v); err != nil {
				return fmt.Errorf("写数据行失败: %w", err)
			}
		}
	}
	return nil
}

func writeSignalSheet(f *excelize.File, signals []schema.CoachingSignal) error {
	headers := []string{"时间", "类型", "优先级", "客户ID", "内容", "已处理"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetSignals, cell, h); err != nil {
			return fmt.Errorf("写表头失败: %w", err)
		}
	}

	for row, sig := range signals {
		values := []any{
			sig.CreatedAt.Format("2006-01-02 15:04"),
			string(sig.Type),
			string(sig.Priority),
			sig.AccountID,
			sig.Message,
			sig.Resolved,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetSignals, cell, v); err != nil {
				return fmt.Errorf("写数据行失败: %w", err)
			}
		}
	}
	return nil
}
