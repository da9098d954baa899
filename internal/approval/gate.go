// Package approval holds skill runs that need a human decision. A request
// is prompted right away, or deferred until quiet hours end, and resolves
// exactly once.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/metrics"
	"github.com/harunnryd/hearth/internal/quiethours"
	"github.com/harunnryd/hearth/internal/skill"

	"github.com/oklog/ulid/v2"
)

type State string

const (
	StateCreated  State = "created"
	StateDeferred State = "deferred"
	StatePrompted State = "prompted"
	StateDecided  State = "decided"
)

// Outcome is set once a request is decided.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	// OutcomeExpired is a decline synthesized by Expire.
	OutcomeExpired Outcome = "expired"
)

// Pending is the presentation view of one approval. It is a copy; mutating
// it has no effect on the gate.
type Pending struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Skill       string          `json:"skill"`
	Description string          `json:"description"`
	Details     []string        `json:"details"`
	Risk        skill.RiskLevel `json:"risk"`
	State       State           `json:"state"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliverAt   time.Time       `json:"deliver_at"`
	ExpiresAt   time.Time       `json:"expires_at,omitempty"`
	DecidedAt   time.Time       `json:"decided_at,omitempty"`
}

func (p Pending) clone() Pending {
	p.Details = append([]string(nil), p.Details...)
	return p
}

// Notifier is told when a prompt becomes visible and when a request is
// decided. Calls happen outside the gate lock.
type Notifier interface {
	Prompted(ctx context.Context, p Pending)
	Decided(ctx context.Context, p Pending, result skill.Result)
}

type Filter struct {
	WorkspaceID string
	States      []State
}

type Options struct {
	QuietHours config.QuietHoursConfig
	// TTL bounds how long a request may wait for a decision. Zero disables
	// expiry.
	TTL      time.Duration
	Audit    AuditLogger
	Notifier Notifier
	Now      func() time.Time
}

type entry struct {
	view       Pending
	onDecision func(ctx context.Context, approved bool) skill.Result
}

type Gate struct {
	mu       sync.Mutex
	entries  map[string]*entry
	quiet    config.QuietHoursConfig
	ttl      time.Duration
	audit    AuditLogger
	notifier Notifier
	now      func() time.Time
}

func NewGate(opts Options) *Gate {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		entries:  make(map[string]*entry),
		quiet:    opts.QuietHours,
		ttl:      opts.TTL,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		now:      now,
	}
}

// SetNotifier replaces the notifier. It is meant for wiring at startup.
func (g *Gate) SetNotifier(n Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = n
}

// Submit registers a request. Inside the workspace's quiet hours anything
// below high risk is deferred until the window ends; everything else is
// prompted immediately.
func (g *Gate) Submit(ctx context.Context, workspaceID, skillName string, req *skill.ApprovalRequest) (Pending, error) {
	if req == nil || req.OnDecision == nil {
		return Pending{}, hearthErrors.InvalidInput("approval request needs a continuation")
	}
	if workspaceID == "" {
		return Pending{}, hearthErrors.InvalidInput("workspace id is required")
	}

	risk := req.Risk
	if risk == "" {
		risk = skill.RiskLow
	}

	now := g.now()
	window := quiethours.FromConfig(g.quiet, workspaceID)
	deliverAt := quiethours.DeferUntil(now, window, risk == skill.RiskHigh)

	e := &entry{
		view: Pending{
			ID:          ulid.Make().String(),
			WorkspaceID: workspaceID,
			Skill:       skillName,
			Description: req.Description,
			Details:     append([]string(nil), req.Details...),
			Risk:        risk,
			State:       StateCreated,
			CreatedAt:   now,
			DeliverAt:   deliverAt,
		},
		onDecision: req.OnDecision,
	}
	if g.ttl > 0 {
		e.view.ExpiresAt = deliverAt.Add(g.ttl)
	}
	g.record(ctx, e.view, string(StateCreated))

	if deliverAt.After(now) {
		e.view.State = StateDeferred
	} else {
		e.view.State = StatePrompted
	}

	g.mu.Lock()
	g.entries[e.view.ID] = e
	view := e.view.clone()
	notifier := g.notifier
	g.mu.Unlock()

	metrics.ApprovalsPending.Inc()
	g.record(ctx, view, string(view.State))
	logger.FromContext(ctx).Info("Approval submitted",
		"id", view.ID,
		"skill", skillName,
		"risk", risk,
		"state", view.State,
		"deliver_at", view.DeliverAt,
		"window", window.String(),
	)

	if view.State == StatePrompted && notifier != nil {
		notifier.Prompted(ctx, view)
	}
	return view, nil
}

// Release prompts every deferred request whose delivery time has come.
func (g *Gate) Release(ctx context.Context, now time.Time) []Pending {
	g.mu.Lock()
	var released []Pending
	for _, e := range g.entries {
		if e.view.State != StateDeferred || e.view.DeliverAt.After(now) {
			continue
		}
		e.view.State = StatePrompted
		released = append(released, e.view.clone())
	}
	notifier := g.notifier
	g.mu.Unlock()

	sortPending(released)
	for _, p := range released {
		g.record(ctx, p, string(StatePrompted))
		slog.Info("Deferred approval released", "id", p.ID, "skill", p.Skill)
		if notifier != nil {
			notifier.Prompted(ctx, p)
		}
	}
	return released
}

// Decide resolves a prompted request and runs its continuation once.
func (g *Gate) Decide(ctx context.Context, id string, approved bool) (skill.Result, error) {
	outcome := OutcomeDeclined
	if approved {
		outcome = OutcomeApproved
	}
	return g.resolve(ctx, id, outcome, g.now())
}

// Expire declines, on the user's behalf, every undecided request past its
// expiry. Continuations run with approved=false.
func (g *Gate) Expire(ctx context.Context, now time.Time) []Pending {
	if g.ttl <= 0 {
		return nil
	}

	g.mu.Lock()
	var due []string
	for id, e := range g.entries {
		if e.view.State == StateDecided || e.view.ExpiresAt.IsZero() || e.view.ExpiresAt.After(now) {
			continue
		}
		due = append(due, id)
	}
	g.mu.Unlock()
	sort.Strings(due)

	var expired []Pending
	for _, id := range due {
		if _, err := g.resolve(ctx, id, OutcomeExpired, now); err != nil {
			continue
		}
		if p, err := g.Get(id); err == nil {
			expired = append(expired, p)
		}
	}
	return expired
}

func (g *Gate) resolve(ctx context.Context, id string, outcome Outcome, now time.Time) (skill.Result, error) {
	log := logger.FromContext(ctx)

	g.mu.Lock()
	e, ok := g.entries[id]
	if !ok {
		g.mu.Unlock()
		return skill.Result{}, hearthErrors.NotFound(fmt.Sprintf("approval %s", id))
	}
	switch e.view.State {
	case StateDecided:
		prior := e.view.Outcome
		g.mu.Unlock()
		log.Warn("Approval already decided", "id", id, "outcome", prior)
		if prior == OutcomeExpired {
			return skill.Result{}, fmt.Errorf("approval %s: %w: %w", id, hearthErrors.ErrAlreadyDecided, hearthErrors.ErrApprovalExpired)
		}
		return skill.Result{}, fmt.Errorf("approval %s: %w", id, hearthErrors.ErrAlreadyDecided)
	case StateDeferred:
		if outcome != OutcomeExpired {
			g.mu.Unlock()
			return skill.Result{}, fmt.Errorf("approval %s deferred until %s: %w", id, e.view.DeliverAt.Format(time.RFC3339), hearthErrors.ErrNotPrompted)
		}
	}

	e.view.State = StateDecided
	e.view.Outcome = outcome
	e.view.DecidedAt = now
	cont := e.onDecision
	e.onDecision = nil
	view := e.view.clone()
	notifier := g.notifier
	g.mu.Unlock()

	metrics.ApprovalsPending.Dec()
	g.record(ctx, view, string(outcome))

	result := runContinuation(ctx, view, cont, outcome == OutcomeApproved)
	log.Info("Approval decided", "id", id, "skill", view.Skill, "outcome", outcome, "result", result.Kind())

	if notifier != nil {
		notifier.Decided(ctx, view, result)
	}
	return result, nil
}

// runContinuation never lets a continuation escape as a panic or as a
// second approval request.
func runContinuation(ctx context.Context, p Pending, cont func(context.Context, bool) skill.Result, approved bool) (result skill.Result) {
	start := time.Now()
	defer func() {
		metrics.SkillDuration.WithLabelValues(p.Skill).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			slog.Error("Approval continuation panicked", "id", p.ID, "skill", p.Skill, "panic", r)
			result = skill.Failuref("%s crashed while finishing the request", p.Skill)
		}
	}()

	result = cont(ctx, approved)
	if result.Kind() == skill.KindNeedsApproval {
		slog.Warn("Continuation asked for another approval", "id", p.ID, "skill", p.Skill)
		return skill.Failure("nested approvals are not supported")
	}
	return result
}

func (g *Gate) Get(id string) (Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return Pending{}, hearthErrors.NotFound(fmt.Sprintf("approval %s", id))
	}
	return e.view.clone(), nil
}

// List returns matching requests, oldest first.
func (g *Gate) List(filter Filter) []Pending {
	states := make(map[State]struct{}, len(filter.States))
	for _, s := range filter.States {
		states[s] = struct{}{}
	}

	g.mu.Lock()
	out := make([]Pending, 0, len(g.entries))
	for _, e := range g.entries {
		if filter.WorkspaceID != "" && e.view.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if len(states) > 0 {
			if _, ok := states[e.view.State]; !ok {
				continue
			}
		}
		out = append(out, e.view.clone())
	}
	g.mu.Unlock()

	sortPending(out)
	return out
}

// Prune forgets decided requests decided before cutoff. It returns how many
// were removed.
func (g *Gate) Prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, e := range g.entries {
		if e.view.State == StateDecided && e.view.DecidedAt.Before(cutoff) {
			delete(g.entries, id)
			removed++
		}
	}
	return removed
}

// Audit exposes the audit log, or nil when auditing is off.
func (g *Gate) Audit() AuditLogger {
	return g.audit
}

func (g *Gate) record(ctx context.Context, p Pending, action string) {
	metrics.ApprovalTransitions.WithLabelValues(action, string(p.Risk)).Inc()
	if g.audit == nil {
		return
	}
	err := g.audit.Log(ctx, &AuditEntry{
		WorkspaceID: p.WorkspaceID,
		ApprovalID:  p.ID,
		Skill:       p.Skill,
		Risk:        string(p.Risk),
		Action:      action,
		Description: p.Description,
		Details:     p.Details,
	})
	if err != nil {
		slog.Warn("Failed to write approval audit entry", "id", p.ID, "error", err)
	}
}

func sortPending(ps []Pending) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
