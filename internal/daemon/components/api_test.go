package components

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/executor"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkspace = "family"

func newTestAPI(t *testing.T, mutate func(*config.Config)) (*API, *RuntimeComponent) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Daemon:     config.DaemonConfig{WorkspacePath: filepath.Join(root, "workspaces")},
		Skills:     config.SkillsConfig{Path: filepath.Join(root, "skills")},
		Embedding:  config.EmbeddingConfig{Provider: "hash", Dimensions: 64},
		QuietHours: config.QuietHoursConfig{Start: "00:00", End: "00:00"},
		Approval:   config.ApprovalConfig{TTL: "1h", AuditLog: true},
		Wellness:   config.WellnessConfig{Members: []string{"mom"}, RecallLimit: 10},
	}
	if mutate != nil {
		mutate(cfg)
	}

	ctx := context.Background()
	storeComp := NewStorePoolComponent(testWorkspace, cfg.Daemon.WorkspacePath, &cfg.Store)
	require.NoError(t, storeComp.Init(ctx))
	t.Cleanup(func() { _ = storeComp.Stop(ctx) })

	runtimeComp := NewRuntimeComponent(cfg, storeComp)
	require.NoError(t, runtimeComp.Init(ctx))
	require.NoError(t, runtimeComp.Start(ctx))
	t.Cleanup(func() { _ = runtimeComp.Stop(ctx) })

	temporalComp := NewTemporalComponent(&cfg.Temporal, runtimeComp)
	runner := NewWellnessRunner(&cfg.Wellness, runtimeComp, temporalComp)

	return NewAPI(cfg, testWorkspace, storeComp, runtimeComp, runner), runtimeComp
}

func serve(t *testing.T, api *API, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	mux := http.NewServeMux()
	api.Routes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_IntentResponse(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{MemberID: "mom", Text: "get me an uber to the airport"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[executor.Outcome](t, rec)
	assert.Equal(t, "transportation", out.Skill)
	assert.Equal(t, "response", out.Kind)
	assert.Contains(t, out.Response, "RIDE OPTIONS")
	assert.Nil(t, out.Pending)
}

func TestAPI_IntentValidation(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, api, http.MethodPost, "/v1/intents", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ErrInvalidInput", decode[ErrorResponse](t, rec).Category)

	rec = serve(t, api, http.MethodPost, "/v1/intents", map[string]any{"text": "hi", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_IntentNoMatch(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "xyzzy plugh"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[executor.Outcome](t, rec)
	assert.Equal(t, executor.KindFallback, out.Kind)
	assert.NotEmpty(t, out.IntentID)
	assert.Contains(t, out.Response, "I can help with")
	assert.Contains(t, out.Response, "- telephony:")
}

func TestAPI_IntentUrgency(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "what's the traffic like", Urgency: "URGENT"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "what's the traffic like", Urgency: "asap"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RejectsWorkspaceOutsideRoot(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	parent := filepath.Dir(api.cfg.Daemon.WorkspacePath)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/v1/intents", IntentRequest{WorkspaceID: "../escaped", Text: "what's the traffic like", MessageID: "m1"}},
		{http.MethodPost, "/v1/wellness/daily", WellnessRequest{WorkspaceID: "../escaped", Date: "2025-03-14"}},
		{http.MethodGet, "/v1/approvals/history?workspace_id=..%2Fescaped", nil},
	}
	for _, r := range requests {
		rec := serve(t, api, r.method, r.path, r.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, r.path)
		assert.Equal(t, "ErrInvalidInput", decode[ErrorResponse](t, rec).Category, r.path)
	}

	_, err := os.Stat(filepath.Join(parent, "escaped"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{testWorkspace}, api.storeComp.GetPool().Workspaces())
}

func TestAPI_IntentReplayRejected(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	req := IntentRequest{Text: "what's the traffic like", MessageID: "msg-1"}

	first := serve(t, api, http.MethodPost, "/v1/intents", req)
	require.Equal(t, http.StatusOK, first.Code)

	replay := serve(t, api, http.MethodPost, "/v1/intents", req)
	assert.Equal(t, http.StatusConflict, replay.Code)
}

func TestAPI_IntentRetryAfterUnprocessedFailure(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	failed := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "  ", MessageID: "msg-2"})
	require.Equal(t, http.StatusBadRequest, failed.Code)

	retry := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "what's the traffic like", MessageID: "msg-2"})
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())

	replay := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{Text: "what's the traffic like", MessageID: "msg-2"})
	assert.Equal(t, http.StatusConflict, replay.Code)
}

func TestAPI_ApprovalLifecycle(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/intents", IntentRequest{MemberID: "dad", Text: "call the doctor to move my appointment"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	out := decode[executor.Outcome](t, rec)
	require.NotNil(t, out.Pending)
	id := out.Pending.ID
	assert.Equal(t, "telephony", out.Pending.Skill)

	rec = serve(t, api, http.MethodGet, "/v1/approvals?workspace_id=family&state=prompted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]approval.Pending](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = serve(t, api, http.MethodGet, "/v1/approvals/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, approval.StatePrompted, decode[approval.Pending](t, rec).State)

	rec = serve(t, api, http.MethodPost, "/v1/approvals/"+id+"/decision", DecisionRequest{Approved: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "response", decode[executor.Outcome](t, rec).Kind)

	rec = serve(t, api, http.MethodPost, "/v1/approvals/"+id+"/decision", DecisionRequest{Approved: true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, api, http.MethodGet, "/v1/approvals/history?approval_id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]approval.AuditEntry](t, rec))
}

func TestAPI_UnknownApproval(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodGet, "/v1/approvals/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, api, http.MethodPost, "/v1/approvals/nope/decision", DecisionRequest{Approved: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_HistoryWithoutAuditLog(t *testing.T) {
	api, _ := newTestAPI(t, func(cfg *config.Config) { cfg.Approval.AuditLog = false })

	rec := serve(t, api, http.MethodGet, "/v1/approvals/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_WellnessInProcess(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodPost, "/v1/wellness/daily", WellnessRequest{Date: "2025-03-14"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decode[wellness.DailySummary](t, rec)
	assert.Equal(t, testWorkspace, summary.WorkspaceID)
	assert.Equal(t, "2025-03-14", summary.Date)
	assert.Contains(t, summary.MemberScores, "mom")
}

func TestAPI_Skills(t *testing.T) {
	api, rt := newTestAPI(t, nil)

	rec := serve(t, api, http.MethodGet, "/v1/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), rt.GetRuntime().Registry.Len())

	rec = serve(t, api, http.MethodGet, "/v1/skills?text=call+the+plumber", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scores := decode[[]SkillScore](t, rec)
	require.NotEmpty(t, scores)
	assert.Equal(t, "telephony", scores[0].Name)
	assert.Greater(t, scores[0].Score, 0.0)
}
