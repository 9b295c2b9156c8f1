package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// Default 返回一份可直接落盘的默认配置
func Default() *Config {
	return &Config{
		App:     AppConfig{Name: "field-agent", Version: "0.1.0", LogLevel: "info"},
		Storage: StorageConfig{DBPath: "./data/field.db"},
		Scoring: ScoringConfig{
			IntensityBase:         100.0,
			QuantityCeilingFactor: 2.0,
			BCRWindowDays:         30,
		},
		Schedule: ScheduleConfig{Enabled: true, Cron: "30 2 * * *"},
		Import:   ImportConfig{Enabled: false, WatchDir: "./data/inbox"},
		Export:   ExportConfig{OutputDir: "./data/reports"},
		Server:   ServerConfig{ListenAddr: "127.0.0.1:8700"},
		AI: AIConfig{Embedding: EmbeddingConfig{
			BaseURL: "https://api.siliconflow.cn",
			Model:   "BAAI/bge-m3",
		}},
	}
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"scoring": map[string]any{
			"intensity_base":          cfg.Scoring.IntensityBase,
			"quantity_ceiling_factor": cfg.Scoring.QuantityCeilingFactor,
			"bcr_window_days":         cfg.Scoring.BCRWindowDays,
		},
		"schedule": map[string]any{
			"enabled":  cfg.Schedule.Enabled,
			"cron":     cfg.Schedule.Cron,
			"owner_id": cfg.Schedule.OwnerID,
		},
		"import": map[string]any{
			"enabled":   cfg.Import.Enabled,
			"watch_dir": cfg.Import.WatchDir,
		},
		"export": map[string]any{
			"output_dir": cfg.Export.OutputDir,
		},
		"server": map[string]any{
			"listen_addr": cfg.Server.ListenAddr,
		},
		"ai": map[string]any{
			"embedding": map[string]any{
				"api_key":  cfg.AI.Embedding.APIKey,
				"base_url": cfg.AI.Embedding.BaseURL,
				"model":    cfg.AI.Embedding.Model,
			},
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
