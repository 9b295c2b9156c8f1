package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Import   ImportConfig   `mapstructure:"import"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	AI       AIConfig       `mapstructure:"ai"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ScoringConfig 评分配置
// 这些常数是启发式上限而非人群基线，参数化以便后续校准时无需改代码。
type ScoringConfig struct {
	IntensityBase         float64 `mapstructure:"intensity_base"`          // 强度归一化基数
	QuantityCeilingFactor float64 `mapstructure:"quantity_ceiling_factor"` // 加权处方量上限倍率
	BCRWindowDays         int     `mapstructure:"bcr_window_days"`         // 行为一致率默认窗口天数
}

// ScheduleConfig 定时重算配置
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`     // 标准 5 字段 cron 表达式
	OwnerID int64  `mapstructure:"owner_id"` // 重算归属的销售 ID
}

// ImportConfig 竞品信号导入配置
type ImportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	WatchDir string `mapstructure:"watch_dir"` // 投递目录，监听其中的 *.json
}

// ExportConfig 报表导出配置
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig 本地 HTTP 配置
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// AIConfig AI 配置（仅嵌入，用于活动备注检索）
type AIConfig struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("FIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.AI.Embedding.APIKey = expandEnv(cfg.AI.Embedding.APIKey)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "field-agent")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Storage
	v.SetDefault("storage.db_path", "./data/field.db")

	// Scoring（观测到的启发式常数）
	v.SetDefault("scoring.intensity_base", 100.0)
	v.SetDefault("scoring.quantity_ceiling_factor", 2.0)
	v.SetDefault("scoring.bcr_window_days", 30)

	// Schedule
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.cron", "30 2 * * *")
	v.SetDefault("schedule.owner_id", 0)

	// Import
	v.SetDefault("import.enabled", false)
	v.SetDefault("import.watch_dir", "./data/inbox")

	// Export
	v.SetDefault("export.output_dir", "./data/reports")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:8700")

	// AI
	v.SetDefault("ai.embedding.base_url", "https://api.siliconflow.cn")
	v.SetDefault("ai.embedding.model", "BAAI/bge-m3")
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
