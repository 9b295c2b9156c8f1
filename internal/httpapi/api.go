package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yuqie6/FieldMirror/internal/schema"
	"github.com/yuqie6/FieldMirror/internal/service"
)

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/scores", a.wrapGET(a.getBehaviorScores))
	mux.HandleFunc("/api/scores/recompute", a.wrapPOST(a.recomputeBehaviorScores))

	mux.HandleFunc("/api/consistency", a.wrapGET(a.getConsistency))

	mux.HandleFunc("/api/outcomes", a.wrapGET(a.getOutcomes))
	mux.HandleFunc("/api/outcomes/recompute", a.wrapPOST(a.recomputeOutcomes))

	mux.HandleFunc("/api/correlations", a.wrapGET(a.getCorrelations))

	mux.HandleFunc("/api/signals", a.wrapGET(a.listSignals))
	mux.HandleFunc("/api/signals/detect", a.wrapPOST(a.detectSignals))
	mux.HandleFunc("/api/signals/resolve", a.wrapPOST(a.resolveSignal))

	mux.HandleFunc("/api/team/rollup", a.wrapPOST(a.teamRollup))

	mux.HandleFunc("/api/reports/export", a.wrapPOST(a.exportReport))

	mux.HandleFunc("/api/notes/search", a.wrapGET(a.searchNotes))
	mux.HandleFunc("/api/notes/reindex", a.wrapPOST(a.reindexNotes))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// windowFromQuery 从 start/end 查询参数还原窗口
func windowFromQuery(r *http.Request) service.Window {
	return service.Window{
		Start: queryInt64(r, "start"),
		End:   queryInt64(r, "end"),
	}
}

func periodTypeFromQuery(r *http.Request, fallback schema.PeriodType) schema.PeriodType {
	v := strings.TrimSpace(r.URL.Query().Get("period_type"))
	if v == "" {
		return fallback
	}
	return schema.PeriodType(v)
}

// ========== 行为评分 ==========

func (a *apiServer) getBehaviorScores(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	accountID := queryInt64(r, "account_id")
	win := windowFromQuery(r)
	if ownerID <= 0 || !win.Valid() {
		writeError(w, http.StatusBadRequest, "owner_id/start/end 参数无效")
		return
	}

	scores, err := a.core.Repos.Score.GetForPeriod(r.Context(), ownerID, accountID, win.Start, win.End)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

type recomputeRequest struct {
	OwnerID   int64 `json:"owner_id"`
	AccountID int64 `json:"account_id"`
	Start     int64 `json:"start"`
	End       int64 `json:"end"`
}

func (a *apiServer) recomputeBehaviorScores(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	scores, err := a.core.Services.Behavior.CalculateAndStore(ctx, req.OwnerID, req.AccountID, service.Window{Start: req.Start, End: req.End})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

// ========== 行为一致率 ==========

func (a *apiServer) getConsistency(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	if ownerID <= 0 {
		writeError(w, http.StatusBadRequest, "owner_id 参数无效")
		return
	}
	accountID := queryInt64(r, "account_id")

	win := windowFromQuery(r)
	if !win.Valid() {
		win = a.core.Services.Consistency.DefaultWindow()
	}

	score, err := a.core.Services.Consistency.Calculate(r.Context(), ownerID, accountID, win)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bcr": score, "window": win})
}

// ========== 成果指标 ==========

func (a *apiServer) getOutcomes(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	win := windowFromQuery(r)
	if ownerID <= 0 || !win.Valid() {
		writeError(w, http.StatusBadRequest, "owner_id/start/end 参数无效")
		return
	}
	accountID := queryInt64(r, "account_id")
	periodType := periodTypeFromQuery(r, schema.PeriodWeekly)

	results, err := a.core.Repos.Outcome.GetSeries(r.Context(), ownerID, accountID, periodType, win.Start, win.End)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": results})
}

type outcomeRecomputeRequest struct {
	OwnerID    int64  `json:"owner_id"`
	AccountID  int64  `json:"account_id"`
	PeriodType string `json:"period_type"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
}

func (a *apiServer) recomputeOutcomes(w http.ResponseWriter, r *http.Request) {
	var req outcomeRecomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	periodType := schema.PeriodType(req.PeriodType)
	if periodType == "" {
		periodType = schema.PeriodWeekly
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := a.core.Services.Outcome.ComputeAndStore(ctx, req.OwnerID, req.AccountID, periodType, service.Window{Start: req.Start, End: req.End})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": result})
}

// ========== 行为-成果关联 ==========

func (a *apiServer) getCorrelations(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	win := windowFromQuery(r)
	if ownerID <= 0 || !win.Valid() {
		writeError(w, http.StatusBadRequest, "owner_id/start/end 参数无效")
		return
	}
	accountID := queryInt64(r, "account_id")
	periodType := periodTypeFromQuery(r, schema.PeriodWeekly)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := a.core.Services.Correlation.Analyze(ctx, ownerID, accountID, periodType, win.Start, win.End)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ========== 辅导信号 ==========

func (a *apiServer) listSignals(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	if ownerID <= 0 {
		writeError(w, http.StatusBadRequest, "owner_id 参数无效")
		return
	}
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	limit := queryInt(r, "limit", 100)

	signals, err := a.core.Repos.Signal.ListByOwner(r.Context(), ownerID, unresolvedOnly, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (a *apiServer) detectSignals(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	batchID, signals, err := a.core.Services.Coach.GenerateAndStore(ctx, req.OwnerID, req.AccountID, service.Window{Start: req.Start, End: req.End})
	if err != nil && len(signals) == 0 {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{"batch_id": batchID, "signals": signals}
	if err != nil {
		// 部分检测器失败但仍有产出，照常返回并附带说明
		resp["partial_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	ID int64 `json:"id"`
}

func (a *apiServer) resolveSignal(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id 参数无效")
		return
	}

	if err := a.core.Repos.Signal.Resolve(r.Context(), req.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "信号不存在")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": true})
}

// ========== 团队汇总 ==========

func (a *apiServer) teamRollup(w http.ResponseWriter, r *http.Request) {
	var req outcomeRecomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	periodType := schema.PeriodType(req.PeriodType)
	if periodType == "" {
		periodType = schema.PeriodWeekly
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	summary, err := a.core.Services.Team.Rollup(ctx, req.OwnerID, periodType, service.Window{Start: req.Start, End: req.End})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ========== 报表导出 ==========

func (a *apiServer) exportReport(w http.ResponseWriter, r *http.Request) {
	var req outcomeRecomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	periodType := schema.PeriodType(req.PeriodType)
	if periodType == "" {
		periodType = schema.PeriodWeekly
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	path, err := a.core.Services.Export.Export(ctx, req.OwnerID, req.AccountID, periodType, req.Start, req.End)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

// ========== 备注检索 ==========

func (a *apiServer) searchNotes(w http.ResponseWriter, r *http.Request) {
	ownerID := queryInt64(r, "owner_id")
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if ownerID <= 0 || query == "" {
		writeError(w, http.StatusBadRequest, "owner_id/q 参数无效")
		return
	}
	topK := queryInt(r, "top_k", 5)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	results, err := a.core.Services.NoteIndex.Query(ctx, ownerID, query, topK)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *apiServer) reindexNotes(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	if req.OwnerID <= 0 || req.Start <= 0 || req.End <= req.Start {
		writeError(w, http.StatusBadRequest, "owner_id/start/end 参数无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	var activities []schema.Activity
	var err error
	if req.AccountID > 0 {
		activities, err = a.core.Repos.Activity.GetByAccountAndTimeRange(ctx, req.OwnerID, req.AccountID, req.Start, req.End)
	} else {
		activities, err = a.core.Repos.Activity.GetByOwnerAndTimeRange(ctx, req.OwnerID, req.Start, req.End)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	indexed := a.core.Services.NoteIndex.IndexBatch(ctx, activities)
	writeJSON(w, http.StatusOK, map[string]any{"scanned": len(activities), "indexed": indexed})
}
