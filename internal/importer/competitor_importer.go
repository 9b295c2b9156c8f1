package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// CompetitorRepository 导入器需要的最小写入口
type CompetitorRepository interface {
	BatchInsert(ctx context.Context, signals []schema.CompetitorSignal) error
}

// CompetitorImporter 竞品信号文件导入器
// 监控投递目录中的 JSON 文件，解析校验后落库，成功的文件改名为 .processed。
// 外部系统（市场情报侧）只需把文件丢进目录即可。
type CompetitorImporter struct {
	watcher     *fsnotify.Watcher
	repo        CompetitorRepository
	watchDir    string
	stopChan    chan struct{}
	running     bool
	mu          sync.Mutex
	stopOnce    sync.Once
	debounceMap map[string]time.Time
	debounceDur time.Duration
}

// competitorRecord 投递文件中的单条记录
type competitorRecord struct {
	AccountID  int64  `json:"account_id"`
	Competitor string `json:"competitor"`
	DetectedAt int64  `json:"detected_at"` // Unix 毫秒，0 表示取导入时刻
	Tag        string `json:"tag"`
}

// NewCompetitorImporter 创建导入器
func NewCompetitorImporter(repo CompetitorRepository, watchDir string) (*CompetitorImporter, error) {
	if watchDir == "" {
		return nil, fmt.Errorf("投递目录不能为空")
	}
	if err := os.MkdirAll(watchDir, 0755); err != nil {
		return nil, fmt.Errorf("创建投递目录失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &CompetitorImporter{
		watcher:     watcher,
		repo:        repo,
		watchDir:    watchDir,
		stopChan:    make(chan struct{}),
		debounceMap: make(map[string]time.Time),
		debounceDur: 2 * time.Second,
	}, nil
}

// Start 启动监控。先处理目录中已存在的积压文件，再进入事件循环。
func (i *CompetitorImporter) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil
	}
	i.running = true
	i.mu.Unlock()

	if err := i.watcher.Add(i.watchDir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	i.drainBacklog(ctx)

	slog.Info("竞品信号导入器启动", "watch_dir", i.watchDir)
	go i.watchLoop(ctx)
	return nil
}

// Stop 停止监控
func (i *CompetitorImporter) Stop() error {
	i.stopOnce.Do(func() {
		i.mu.Lock()
		if !i.running {
			i.mu.Unlock()
			return
		}
		i.running = false
		i.mu.Unlock()

		close(i.stopChan)
		_ = i.watcher.Close()
		slog.Info("竞品信号导入器已停止")
	})
	return nil
}

// drainBacklog 处理启动前已落在目录里的文件
func (i *CompetitorImporter) drainBacklog(ctx context.Context) {
	entries, err := os.ReadDir(i.watchDir)
	if err != nil {
		slog.Warn("读取投递目录失败", "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		i.importFile(ctx, filepath.Join(i.watchDir, e.Name()))
	}
}

func (i *CompetitorImporter) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.stopChan:
			return
		case event, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.handleFsEvent(ctx, event)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("文件监控错误", "error", err)
		}
	}
}

func (i *CompetitorImporter) handleFsEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !strings.HasSuffix(strings.ToLower(event.Name), ".json") {
		return
	}

	// 防抖：写入事件可能连续触发多次
	i.mu.Lock()
	last, exists := i.debounceMap[event.Name]
	now := time.Now()
	if exists && now.Sub(last) < i.debounceDur {
		i.mu.Unlock()
		return
	}
	i.debounceMap[event.Name] = now
	i.mu.Unlock()

	i.importFile(ctx, event.Name)
}

// importFile 解析并导入单个文件
func (i *CompetitorImporter) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("读取竞品信号文件失败", "file", path, "err", err)
		return
	}

	signals, err := ParseCompetitorSignals(data)
	if err != nil {
		slog.Warn("解析竞品信号文件失败", "file", path, "err", err)
		return
	}
	if len(signals) == 0 {
		slog.Debug("竞品信号文件无有效记录", "file", path)
		_ = os.Rename(path, path+".processed")
		return
	}

	if err := i.repo.BatchInsert(ctx, signals); err != nil {
		slog.Error("竞品信号落库失败", "file", path, "err", err)
		return
	}

	if err := os.Rename(path, path+".processed"); err != nil {
		slog.Warn("标记已处理文件失败", "file", path, "err", err)
	}
	slog.Info("竞品信号已导入", "file", filepath.Base(path), "count", len(signals))
}

// ParseCompetitorSignals 解析投递文件内容并过滤非法记录。
// 文件格式为 JSON 数组；缺 account_id 或竞品名的记录会被丢弃。
func ParseCompetitorSignals(data []byte) ([]schema.CompetitorSignal, error) {
	var records []competitorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("JSON 解析失败: %w", err)
	}

	now := time.Now().UnixMilli()
	signals := make([]schema.CompetitorSignal, 0, len(records))
	for _, r := range records {
		if r.AccountID <= 0 || strings.TrimSpace(r.Competitor) == "" {
			slog.Debug("丢弃非法竞品记录", "account", r.AccountID, "competitor", r.Competitor)
			continue
		}
		detectedAt := r.DetectedAt
		if detectedAt <= 0 {
			detectedAt = now
		}
		signals = append(signals, schema.CompetitorSignal{
			AccountID:  r.AccountID,
			Competitor: strings.TrimSpace(r.Competitor),
			DetectedAt: detectedAt,
			Tag:        r.Tag,
		})
	}
	return signals, nil
}
