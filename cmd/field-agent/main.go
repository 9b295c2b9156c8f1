package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuqie6/FieldMirror/internal/bootstrap"
	"github.com/yuqie6/FieldMirror/internal/httpapi"
	"github.com/yuqie6/FieldMirror/internal/importer"
	"github.com/yuqie6/FieldMirror/internal/pkg/config"
	"github.com/yuqie6/FieldMirror/internal/scheduler"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "配置文件路径")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 首次运行时落一份默认配置，便于用户按需修改
	if cfgPath == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(p); errors.Is(statErr, os.ErrNotExist) {
				_ = config.WriteFile(p, config.Default())
			}
			cfgPath = p
		}
	}

	core, err := bootstrap.NewCore(cfgPath)
	if err != nil {
		slog.Error("启动失败", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	slog.Info("Field Agent 启动", "name", core.Cfg.App.Name, "version", core.Cfg.App.Version)

	// 周期重算
	if core.Cfg.Schedule.Enabled {
		if core.Cfg.Schedule.OwnerID <= 0 {
			slog.Warn("调度已启用但未配置 owner_id，跳过周期重算")
		} else {
			sched, err := scheduler.New(
				core.Cfg.Schedule.Cron,
				core.Cfg.Schedule.OwnerID,
				core.Services.Behavior,
				core.Services.Outcome,
				core.Services.Team,
				core.Services.Coach,
				core.Hub,
			)
			if err != nil {
				slog.Error("创建调度器失败", "error", err)
				os.Exit(1)
			}
			sched.Start(ctx)
		}
	}

	// 竞品信号目录导入
	if core.Cfg.Import.Enabled {
		imp, err := importer.NewCompetitorImporter(core.Repos.Competitor, core.Cfg.Import.WatchDir)
		if err != nil {
			slog.Error("创建竞品导入器失败", "error", err)
		} else if err := imp.Start(ctx); err != nil {
			slog.Error("启动竞品导入器失败", "error", err)
		} else {
			defer imp.Stop()
		}
	}

	// 本地 HTTP API
	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: core.Cfg.Server.ListenAddr})
	if err != nil {
		slog.Error("启动本地 HTTP 失败", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("收到退出信号，正在关闭...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = srv.Shutdown(shutdownCtx)
	shutdownCancel()

	slog.Info("Field Agent 已退出")
}
