package service

import (
	"context"
	"strings"
	"testing"

	"github.com/yuqie6/FieldMirror/internal/schema"
)

// fakeEmbedder 按关键词返回固定单位向量，保证相似度可预期
type fakeEmbedder struct {
	configured bool
}

func (f fakeEmbedder) IsConfigured() bool { return f.configured }

func (f fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "价格"):
			out[i] = []float32{1, 0, 0}
		case strings.Contains(t, "库存"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func newNoteIndex(t *testing.T, embedder Embedder) *NoteIndexService {
	t.Helper()
	svc, err := NewNoteIndexService(embedder, &NoteIndexConfig{StoragePath: t.TempDir()})
	if err != nil {
		t.Fatalf("创建备注索引失败: %v", err)
	}
	return svc
}

func TestNoteIndexQueryEmptyCollection(t *testing.T) {
	svc := newNoteIndex(t, fakeEmbedder{configured: true})

	results, err := svc.Query(context.Background(), 1, "价格", 5)
	if err != nil {
		t.Fatalf("空集合检索不应报错: %v", err)
	}
	if results != nil {
		t.Fatalf("空集合应返回 nil，实际 %v", results)
	}
}

func TestNoteIndexBatchThenQuery(t *testing.T) {
	svc := newNoteIndex(t, fakeEmbedder{configured: true})
	ctx := context.Background()

	activities := []schema.Activity{
		{ID: 1, OwnerID: 1, AccountID: 10, Behavior: schema.BehaviorVisit, PerformedAt: testBase, Note: "客户对价格有顾虑"},
		{ID: 2, OwnerID: 1, AccountID: 11, Behavior: schema.BehaviorFollowUp, PerformedAt: testBase, Note: ""},
		{ID: 3, OwnerID: 2, AccountID: 20, Behavior: schema.BehaviorPresentation, PerformedAt: testBase, Note: "库存周转情况良好"},
	}

	if indexed := svc.IndexBatch(ctx, activities); indexed != 2 {
		t.Fatalf("应索引 2 条非空备注，实际 %d", indexed)
	}

	results, err := svc.Query(ctx, 1, "价格", 1)
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("应返回 1 条结果，实际 %d", len(results))
	}
	r := results[0]
	if !strings.Contains(r.Content, "价格有顾虑") {
		t.Errorf("内容不匹配: %s", r.Content)
	}
	if r.AccountID != "10" {
		t.Errorf("客户 ID 应为 10，实际 %s", r.AccountID)
	}
	if r.Behavior != string(schema.BehaviorVisit) {
		t.Errorf("行为类别应为 visit，实际 %s", r.Behavior)
	}

	// owner 过滤：销售 2 检索不到销售 1 的备注
	results, err = svc.Query(ctx, 2, "价格", 1)
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	for _, r := range results {
		if r.AccountID == "10" {
			t.Errorf("不应返回其他销售的备注: %+v", r)
		}
	}
}

func TestNoteIndexUnconfiguredEmbedder(t *testing.T) {
	svc := newNoteIndex(t, fakeEmbedder{configured: false})
	ctx := context.Background()

	err := svc.IndexActivity(ctx, &schema.Activity{ID: 1, OwnerID: 1, Note: "客户对价格有顾虑"})
	if err != nil {
		t.Fatalf("未配置嵌入服务时应静默跳过: %v", err)
	}

	if _, err := svc.Query(ctx, 1, "价格", 5); err == nil {
		t.Fatal("未配置嵌入服务时检索应报错")
	}
}
