package components

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/store"
)

const maxRequestBody = 1 << 20

type IntentRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	MemberID    string `json:"member_id,omitempty"`
	Text        string `json:"text"`
	Urgency     string `json:"urgency,omitempty"`
	// MessageID makes intake idempotent: a replay within store.idempotency_ttl
	// is rejected with 409.
	MessageID string `json:"message_id,omitempty"`
}

type DecisionRequest struct {
	Approved bool `json:"approved"`
}

type WellnessRequest struct {
	WorkspaceID string   `json:"workspace_id,omitempty"`
	Members     []string `json:"members,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type SkillScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

// API serves the /v1 routes on top of the runtime.
type API struct {
	cfg         *config.Config
	workspaceID string
	storeComp   *StorePoolComponent
	runtimeComp *RuntimeComponent
	wellness    *WellnessRunner
	mapper      *hearthErrors.DefaultErrorMapper
}

func NewAPI(cfg *config.Config, workspaceID string, storeComp *StorePoolComponent, runtimeComp *RuntimeComponent, runner *WellnessRunner) *API {
	return &API{
		cfg:         cfg,
		workspaceID: workspaceID,
		storeComp:   storeComp,
		runtimeComp: runtimeComp,
		wellness:    runner,
		mapper:      hearthErrors.NewDefaultErrorMapper(),
	}
}

func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/intents", a.handleIntent)
	mux.HandleFunc("GET /v1/approvals", a.handleListApprovals)
	mux.HandleFunc("GET /v1/approvals/history", a.handleApprovalHistory)
	mux.HandleFunc("GET /v1/approvals/{id}", a.handleGetApproval)
	mux.HandleFunc("POST /v1/approvals/{id}/decision", a.handleDecision)
	mux.HandleFunc("POST /v1/wellness/daily", a.handleWellness)
	mux.HandleFunc("GET /v1/skills", a.handleSkills)
}

func (a *API) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	ws, err := a.workspace(req.WorkspaceID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	urgency, err := skill.ParseUrgency(req.Urgency)
	if err != nil {
		a.writeError(w, hearthErrors.InvalidInput(err.Error()))
		return
	}

	var release func()
	if req.MessageID != "" {
		worker, duplicate, err := a.seen(ws, req.MessageID)
		if err != nil {
			a.writeError(w, err)
			return
		}
		if duplicate {
			a.writeError(w, fmt.Errorf("message %s: %w", req.MessageID, hearthErrors.ErrDuplicateEvent))
			return
		}
		release = func() { worker.ReleaseKey(intentKey(req.MessageID)) }
	}

	intent := skill.NewIntent(ws, req.MemberID, req.Text)
	intent.Urgency = urgency

	rt := a.runtimeComp.GetRuntime()
	ctx := logger.WithTraceID(r.Context(), intent.ID)
	out, err := rt.Executor.Handle(ctx, intent)
	switch {
	case errors.Is(err, hearthErrors.ErrNoSkillMatched):
		writeJSON(w, http.StatusOK, rt.Executor.Fallback(intent.ID))
		return
	case err != nil:
		// A skill failure consumes the message. Other errors release it.
		if release != nil && !errors.Is(err, hearthErrors.ErrSkillFailure) {
			release()
		}
		a.writeError(w, err)
		return
	}

	status := http.StatusOK
	if out.Pending != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func intentKey(messageID string) string {
	return "intent:" + messageID
}

func (a *API) seen(workspaceID, messageID string) (*store.Worker, bool, error) {
	ttl, err := config.DurationOrDefault(a.cfg.Store.IdempotencyTTL, config.DefaultStoreIdempotencyTTL)
	if err != nil {
		return nil, false, hearthErrors.Wrap(err, "parse idempotency ttl")
	}
	worker, err := a.storeComp.GetPool().Worker(workspaceID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", hearthErrors.ErrTransient, err)
	}
	return worker, worker.CheckAndMarkKey(intentKey(messageID), ttl), nil
}

func (a *API) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	filter := approval.Filter{WorkspaceID: r.URL.Query().Get("workspace_id")}
	for _, s := range r.URL.Query()["state"] {
		filter.States = append(filter.States, approval.State(s))
	}
	writeJSON(w, http.StatusOK, a.runtimeComp.GetRuntime().Gate.List(filter))
}

func (a *API) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	p, err := a.runtimeComp.GetRuntime().Gate.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	out, err := a.runtimeComp.GetRuntime().Executor.Decide(r.Context(), r.PathValue("id"), req.Approved)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleApprovalHistory(w http.ResponseWriter, r *http.Request) {
	audit := a.runtimeComp.GetRuntime().Audit
	if audit == nil {
		a.writeError(w, hearthErrors.NotFound("approval audit log is disabled"))
		return
	}

	q := r.URL.Query()
	ws, err := a.workspace(q.Get("workspace_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	entries, err := audit.Query(r.Context(), &approval.AuditFilter{
		WorkspaceID: ws,
		ApprovalID:  q.Get("approval_id"),
		Action:      q.Get("action"),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleWellness(w http.ResponseWriter, r *http.Request) {
	var req WellnessRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	ws, err := a.workspace(req.WorkspaceID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	summary, err := a.wellness.Run(r.Context(), ws, req.Members, req.Date)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSkills(w http.ResponseWriter, r *http.Request) {
	rt := a.runtimeComp.GetRuntime()

	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSON(w, http.StatusOK, rt.Registry.Infos())
		return
	}

	ranked := rt.Router.Rank(skill.NewIntent(a.workspaceID, "", text))
	scores := make([]SkillScore, len(ranked))
	for i, c := range ranked {
		scores[i] = SkillScore{Name: c.Skill.Name(), Score: c.Score}
	}
	writeJSON(w, http.StatusOK, scores)
}

// workspace resolves the request's workspace, defaulting to the daemon's.
func (a *API) workspace(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return a.workspaceID, nil
	}
	if err := store.ValidateWorkspaceID(id); err != nil {
		return "", err
	}
	return id, nil
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := a.mapper.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("API request failed", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Category: a.mapper.Category(err)})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return hearthErrors.InvalidInput("request body is required")
		}
		return hearthErrors.InvalidInput(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
