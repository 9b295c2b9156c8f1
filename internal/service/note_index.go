package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// NoteIndexService 活动备注的向量索引与语义检索
// 给「某客户最近聊过什么」这类回溯问题提供检索入口。
type NoteIndexService struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
}

// NoteIndexConfig 配置
type NoteIndexConfig struct {
	StoragePath string // 向量数据库存储路径
}

// NewNoteIndexService 创建备注索引服务
func NewNoteIndexService(embedder Embedder, cfg *NoteIndexConfig) (*NoteIndexService, error) {
	if cfg == nil {
		cfg = &NoteIndexConfig{}
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data/notes"
	}

	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("创建索引存储目录失败: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.StoragePath, false)
	if err != nil {
		return nil, fmt.Errorf("创建向量数据库失败: %w", err)
	}

	collection, err := db.GetOrCreateCollection("activity_notes", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 collection 失败: %w", err)
	}

	return &NoteIndexService{
		db:         db,
		collection: collection,
		embedder:   embedder,
	}, nil
}

// IndexActivity 索引单条活动备注。备注为空或嵌入服务未配置时静默跳过。
func (s *NoteIndexService) IndexActivity(ctx context.Context, activity *schema.Activity) error {
	if activity.Note == "" {
		return nil
	}
	if !s.embedder.IsConfigured() {
		slog.Debug("嵌入服务未配置，跳过备注索引")
		return nil
	}

	content := fmt.Sprintf("日期: %s\n行为: %s\n备注: %s",
		time.UnixMilli(activity.PerformedAt).Format("2006-01-02"),
		schema.BehaviorCategoryName(activity.Behavior),
		activity.Note)

	embeddings, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("生成嵌入失败: %w", err)
	}
	if len(embeddings) == 0 {
		return fmt.Errorf("嵌入结果为空")
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("activity_%d", activity.ID),
		Content:   content,
		Embedding: embeddings[0],
		Metadata: map[string]string{
			"owner":    fmt.Sprintf("%d", activity.OwnerID),
			"account":  fmt.Sprintf("%d", activity.AccountID),
			"behavior": string(activity.Behavior),
			"date":     time.UnixMilli(activity.PerformedAt).Format("2006-01-02"),
		},
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("添加文档失败: %w", err)
	}

	slog.Debug("备注已索引", "activity", activity.ID)
	return nil
}

// IndexBatch 批量索引，逐条失败只记日志不中断
func (s *NoteIndexService) IndexBatch(ctx context.Context, activities []schema.Activity) int {
	if !s.embedder.IsConfigured() {
		slog.Debug("嵌入服务未配置，跳过批量索引")
		return 0
	}
	indexed := 0
	for i := range activities {
		if err := s.IndexActivity(ctx, &activities[i]); err != nil {
			slog.Warn("备注索引失败", "activity", activities[i].ID, "err", err)
			continue
		}
		if activities[i].Note != "" {
			indexed++
		}
	}
	return indexed
}

// NoteResult 备注检索结果
type NoteResult struct {
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	AccountID  string  `json:"account_id"`
	Behavior   string  `json:"behavior"`
	Date       string  `json:"date"`
}

// Query 语义检索活动备注
func (s *NoteIndexService) Query(ctx context.Context, ownerID int64, query string, topK int) ([]NoteResult, error) {
	if !s.embedder.IsConfigured() {
		return nil, fmt.Errorf("嵌入服务未配置")
	}
	if topK <= 0 {
		topK = 5
	}

	queryEmb, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}
	if len(queryEmb) == 0 {
		return nil, fmt.Errorf("查询嵌入为空")
	}

	// chromem 要求 topK 不超过集合文档数
	if count := s.collection.Count(); topK > count {
		if count == 0 {
			return nil, nil
		}
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, queryEmb[0],
		topK,
		map[string]string{"owner": fmt.Sprintf("%d", ownerID)},
		nil)
	if err != nil {
		return nil, fmt.Errorf("向量搜索失败: %w", err)
	}

	notes := make([]NoteResult, len(results))
	for i, r := range results {
		notes[i] = NoteResult{
			Content:    r.Content,
			Similarity: r.Similarity,
			AccountID:  r.Metadata["account"],
			Behavior:   r.Metadata["behavior"],
			Date:       r.Metadata["date"],
		}
	}
	return notes, nil
}

// Close 关闭服务（chromem 持久化库自动落盘）
func (s *NoteIndexService) Close() error {
	return nil
}
