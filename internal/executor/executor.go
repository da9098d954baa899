// Package executor runs one intent through route, execute and the approval
// gate. Final results of approvals arrive later on Results and listeners.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/approval"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/metrics"
	"github.com/harunnryd/hearth/internal/skill"
)

// Telemetry events.
const (
	EventIntentRouted     = "intent.routed"
	EventIntentUnmatched  = "intent.unmatched"
	EventSkillCompleted   = "skill.completed"
	EventSkillFailed      = "skill.failed"
	EventApprovalPending  = "approval.pending"
	EventApprovalPrompted = "approval.prompted"
	EventApprovalDecided  = "approval.decided"
)

const DefaultResultsBuffer = 64

// KindFallback marks an Outcome answered without a skill.
const KindFallback = "fallback"

// SkillFailure is a skill's own report that it could not finish. Reason is
// shown to the user as is.
type SkillFailure struct {
	Skill  string
	Reason string
}

func (e *SkillFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Skill, e.Reason)
}

func (e *SkillFailure) Unwrap() error {
	return hearthErrors.ErrSkillFailure
}

// Outcome is what a caller gets back from Handle or Decide. Exactly one of
// Response or Pending is meaningful, depending on Kind.
type Outcome struct {
	IntentID string            `json:"intent_id,omitempty"`
	Skill    string            `json:"skill"`
	Kind     string            `json:"kind"`
	Response string            `json:"response,omitempty"`
	Pending  *approval.Pending `json:"pending,omitempty"`
}

// Resolution is the asynchronous final result of an approval.
type Resolution struct {
	Approval approval.Pending `json:"approval"`
	Kind     string           `json:"kind"`
	Response string           `json:"response,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

type Options struct {
	ResultsBuffer int
	Now           func() time.Time
}

type Executor struct {
	router  *skill.Router
	gate    *approval.Gate
	bridge  activity.Bridge
	now     func() time.Time
	results chan Resolution

	mu        sync.RWMutex
	listeners []func(Resolution)
}

// New builds an executor and installs it as the gate's notifier.
func New(router *skill.Router, gate *approval.Gate, bridge activity.Bridge, opts Options) *Executor {
	size := opts.ResultsBuffer
	if size <= 0 {
		size = DefaultResultsBuffer
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Executor{
		router:  router,
		gate:    gate,
		bridge:  bridge,
		now:     now,
		results: make(chan Resolution, size),
	}
	gate.SetNotifier(e)
	return e
}

// Results delivers approval resolutions. Sends never block; a full buffer
// drops the resolution with a warning, listeners still see it.
func (e *Executor) Results() <-chan Resolution {
	return e.results
}

func (e *Executor) OnResolution(fn func(Resolution)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Executor) Gate() *approval.Gate {
	return e.gate
}

func (e *Executor) Handle(ctx context.Context, intent skill.Intent) (Outcome, error) {
	if intent.WorkspaceID == "" {
		return Outcome{}, hearthErrors.InvalidInput("workspace id is required")
	}
	if strings.TrimSpace(intent.Text) == "" {
		return Outcome{}, hearthErrors.InvalidInput("intent text is required")
	}

	ctx = logger.WithWorkspaceID(ctx, intent.WorkspaceID)
	if logger.GetTraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, intent.ID)
	}
	log := logger.FromContext(ctx)

	s, ok := e.router.Route(intent)
	if !ok {
		metrics.IntentsTotal.WithLabelValues("", "unmatched").Inc()
		e.bridge.EmitEvent(ctx, intent.WorkspaceID, EventIntentUnmatched, map[string]any{
			"intent_id": intent.ID,
			"member":    intent.MemberID,
		})
		log.Info("No skill matched intent", "intent_id", intent.ID)
		return Outcome{IntentID: intent.ID}, fmt.Errorf("intent %s: %w", intent.ID, hearthErrors.ErrNoSkillMatched)
	}

	name := s.Name()
	e.bridge.EmitEvent(ctx, intent.WorkspaceID, EventIntentRouted, map[string]any{
		"intent_id": intent.ID,
		"skill":     name,
		"member":    intent.MemberID,
		"urgency":   string(intent.Urgency),
	})
	log.Debug("Intent routed", "intent_id", intent.ID, "skill", name)

	res := e.execute(ctx, s, intent)
	out := Outcome{IntentID: intent.ID, Skill: name, Kind: res.Kind().String()}

	switch res.Kind() {
	case skill.KindResponse:
		metrics.IntentsTotal.WithLabelValues(name, "response").Inc()
		e.bridge.EmitEvent(ctx, intent.WorkspaceID, EventSkillCompleted, map[string]any{"intent_id": intent.ID, "skill": name})
		out.Response = res.Text()
		return out, nil

	case skill.KindNeedsApproval:
		p, err := e.gate.Submit(ctx, intent.WorkspaceID, name, res.Approval())
		if err != nil {
			metrics.IntentsTotal.WithLabelValues(name, "failure").Inc()
			return out, fmt.Errorf("submit approval for %s: %w", name, err)
		}
		metrics.IntentsTotal.WithLabelValues(name, "pending").Inc()
		e.bridge.EmitEvent(ctx, intent.WorkspaceID, EventApprovalPending, map[string]any{
			"intent_id":   intent.ID,
			"skill":       name,
			"approval_id": p.ID,
			"risk":        string(p.Risk),
			"state":       string(p.State),
			"deliver_at":  p.DeliverAt.Format(time.RFC3339),
			"urgency":     string(intent.Urgency),
		})
		// Urgency never lifts a quiet-hours hold; only high risk does.
		if intent.Urgent() && p.State == approval.StateDeferred {
			log.Warn("Urgent request held for quiet hours",
				"approval_id", p.ID,
				"skill", name,
				"urgency", intent.Urgency,
				"deliver_at", p.DeliverAt,
			)
		}
		out.Pending = &p
		return out, nil

	default:
		metrics.IntentsTotal.WithLabelValues(name, "failure").Inc()
		e.bridge.EmitEvent(ctx, intent.WorkspaceID, EventSkillFailed, map[string]any{
			"intent_id": intent.ID,
			"skill":     name,
			"reason":    res.Reason(),
		})
		log.Warn("Skill failed", "skill", name, "reason", res.Reason())
		return out, &SkillFailure{Skill: name, Reason: res.Reason()}
	}
}

// Fallback answers an intent that no skill matched with what the assistant
// can help with.
func (e *Executor) Fallback(intentID string) Outcome {
	var b strings.Builder
	b.WriteString("I'm not sure how to help with that yet.")
	if skills := e.router.Skills(); len(skills) > 0 {
		b.WriteString(" I can help with:")
		for _, s := range skills {
			fmt.Fprintf(&b, "\n  - %s: %s", s.Name(), s.Description())
		}
	}
	return Outcome{IntentID: intentID, Kind: KindFallback, Response: b.String()}
}

// Decide resolves a pending approval. The same result is also published on
// Results and to listeners.
func (e *Executor) Decide(ctx context.Context, id string, approved bool) (Outcome, error) {
	p, err := e.gate.Get(id)
	if err != nil {
		return Outcome{}, err
	}
	ctx = logger.WithWorkspaceID(ctx, p.WorkspaceID)

	res, err := e.gate.Decide(ctx, id, approved)
	if err != nil {
		return Outcome{Skill: p.Skill}, err
	}

	out := Outcome{Skill: p.Skill, Kind: res.Kind().String(), Response: res.Text()}
	if res.Kind() == skill.KindFailure {
		return out, &SkillFailure{Skill: p.Skill, Reason: res.Reason()}
	}
	return out, nil
}

func (e *Executor) execute(ctx context.Context, s skill.Skill, intent skill.Intent) (res skill.Result) {
	start := time.Now()
	defer func() {
		metrics.SkillDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			slog.Error("Skill panicked", "skill", s.Name(), "panic", r)
			res = skill.Failuref("%s crashed while handling the request", s.Name())
		}
	}()

	return s.Execute(ctx, skill.Context{
		Intent:     intent,
		Activities: e.bridge,
		Now:        e.now(),
	})
}

// Prompted implements approval.Notifier.
func (e *Executor) Prompted(ctx context.Context, p approval.Pending) {
	e.bridge.EmitEvent(ctx, p.WorkspaceID, EventApprovalPrompted, map[string]any{
		"approval_id": p.ID,
		"skill":       p.Skill,
		"risk":        string(p.Risk),
		"description": p.Description,
	})
}

// Decided implements approval.Notifier. It covers user decisions and
// expiries alike.
func (e *Executor) Decided(ctx context.Context, p approval.Pending, result skill.Result) {
	r := Resolution{
		Approval: p,
		Kind:     result.Kind().String(),
		Response: result.Text(),
		Reason:   result.Reason(),
	}

	e.bridge.EmitEvent(ctx, p.WorkspaceID, EventApprovalDecided, map[string]any{
		"approval_id": p.ID,
		"skill":       p.Skill,
		"outcome":     string(p.Outcome),
		"kind":        r.Kind,
	})

	select {
	case e.results <- r:
	default:
		slog.Warn("Resolution buffer full, dropping", "approval_id", p.ID)
	}

	e.mu.RLock()
	listeners := append([]func(Resolution){}, e.listeners...)
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(r)
	}
}
