package bootstrap

import (
	"log/slog"
	"path/filepath"

	"github.com/yuqie6/FieldMirror/internal/ai"
	"github.com/yuqie6/FieldMirror/internal/eventbus"
	"github.com/yuqie6/FieldMirror/internal/pkg/config"
	"github.com/yuqie6/FieldMirror/internal/repository"
	"github.com/yuqie6/FieldMirror/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database
	Hub *eventbus.Hub

	Repos struct {
		Activity     *repository.ActivityRepository
		Prescription *repository.PrescriptionRepository
		Account      *repository.AccountRepository
		Score        *repository.BehaviorScoreRepository
		Outcome      *repository.OutcomeRepository
		Signal       *repository.SignalRepository
		Competitor   *repository.CompetitorRepository
	}

	Services struct {
		Behavior    *service.BehaviorScoreService
		Consistency *service.ConsistencyService
		Outcome     *service.OutcomeService
		Correlation *service.CorrelationService
		Coach       *service.CoachService
		Team        *service.TeamService
		Export      *service.ReportExportService
		NoteIndex   *service.NoteIndexService
	}

	Clients struct {
		Embedding *ai.EmbeddingClient
	}
}

// NewCore 构建核心依赖（不启动调度与导入）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Activity = repository.NewActivityRepository(db.DB)
	c.Repos.Prescription = repository.NewPrescriptionRepository(db.DB)
	c.Repos.Account = repository.NewAccountRepository(db.DB)
	c.Repos.Score = repository.NewBehaviorScoreRepository(db.DB)
	c.Repos.Outcome = repository.NewOutcomeRepository(db.DB)
	c.Repos.Signal = repository.NewSignalRepository(db.DB)
	c.Repos.Competitor = repository.NewCompetitorRepository(db.DB)

	// Clients
	c.Clients.Embedding = ai.NewEmbeddingClient(&ai.EmbeddingConfig{
		APIKey:  cfg.AI.Embedding.APIKey,
		BaseURL: cfg.AI.Embedding.BaseURL,
		Model:   cfg.AI.Embedding.Model,
	})

	// Services
	policy := service.PolicyFromConfig(cfg.Scoring)
	c.Services.Behavior = service.NewBehaviorScoreService(c.Repos.Activity, c.Repos.Score, policy)
	c.Services.Consistency = service.NewConsistencyService(c.Repos.Activity, c.Repos.Score, cfg.Scoring.BCRWindowDays)
	// 外部指标源（HIR 等处方数据平台）尚未接入，传 nil 时 hir_score 恒为 0
	c.Services.Outcome = service.NewOutcomeService(c.Repos.Activity, c.Repos.Prescription, c.Repos.Account, c.Repos.Outcome, nil, policy)
	slog.Info("外部指标源未接入，hir_score 将记 0")
	c.Services.Correlation = service.NewCorrelationService(c.Repos.Score, c.Repos.Outcome)
	c.Services.Coach = service.NewCoachService(c.Repos.Activity, c.Repos.Signal, c.Repos.Competitor, c.Services.Correlation, c.Hub)
	c.Services.Team = service.NewTeamService(c.Repos.Account, c.Services.Behavior, c.Services.Consistency, c.Services.Outcome)
	c.Services.Export = service.NewReportExportService(c.Repos.Outcome, c.Repos.Signal, cfg.Export.OutputDir)

	// 备注索引是可选能力：嵌入未配置时服务仍创建，索引操作会静默跳过
	noteDir := filepath.Join(filepath.Dir(cfg.Storage.DBPath), "notes")
	noteIndex, err := service.NewNoteIndexService(c.Clients.Embedding, &service.NoteIndexConfig{StoragePath: noteDir})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.Services.NoteIndex = noteIndex

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.Services.NoteIndex != nil {
		_ = c.Services.NoteIndex.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
