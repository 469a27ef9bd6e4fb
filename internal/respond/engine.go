// Package respond implements the automated incident-response execution
// engine: it resolves a matched playbook's actions to registered handlers,
// runs them strictly in priority order with per-action timeouts, applies
// critical-failure short-circuiting, and records every run in a bounded
// execution history.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shield-respond/internal/playbook"
	"shield-respond/internal/schema"
)

// ErrNoMatch is returned by AutoExecute when no enabled playbook matches
// the threat. No execution record is created in that case.
var ErrNoMatch = errors.New("no matching playbook")

// Config configures the engine.
type Config struct {
	// DefaultActionTimeout bounds each handler invocation unless the
	// action declares its own timeout.
	DefaultActionTimeout time.Duration

	// HistorySize caps the retained execution log.
	HistorySize int
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultActionTimeout: 30 * time.Second,
		HistorySize:          DefaultHistorySize,
	}
}

// Sink receives each terminal execution after it is appended to history.
// Sinks run synchronously on the executing goroutine; slow sinks should
// hand off internally.
type Sink func(*Execution)

// Engine owns the playbook registry, the action-handler registry, and the
// execution history for a single process. Concurrent Execute calls for
// different threats do not serialize against each other; actions within
// one run are strictly sequential.
type Engine struct {
	config    Config
	playbooks *playbook.Registry
	matcher   *playbook.Matcher
	handlers  *HandlerRegistry
	history   *History

	sinkMu sync.RWMutex
	sinks  []Sink
}

// New creates an engine with its own registries and history store.
func New(cfg Config) *Engine {
	if cfg.DefaultActionTimeout <= 0 {
		cfg.DefaultActionTimeout = 30 * time.Second
	}
	reg := playbook.NewRegistry()
	return &Engine{
		config:    cfg,
		playbooks: reg,
		matcher:   playbook.NewMatcher(reg),
		handlers:  NewHandlerRegistry(),
		history:   NewHistory(cfg.HistorySize),
	}
}

// RegisterPlaybook adds a playbook definition.
func (e *Engine) RegisterPlaybook(p *playbook.Playbook) error {
	if err := e.playbooks.Register(p); err != nil {
		return err
	}
	slog.Info("registered playbook",
		"playbook_id", p.ID,
		"threat_type", p.Trigger.ThreatType,
		"actions", len(p.Actions))
	return nil
}

// RegisterHandler adds an action handler.
func (e *Engine) RegisterHandler(h Handler) {
	e.handlers.Register(h)
}

// AddSink subscribes a sink to terminal executions.
func (e *Engine) AddSink(s Sink) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Playbooks exposes the playbook registry for host adapters.
func (e *Engine) Playbooks() *playbook.Registry {
	return e.playbooks
}

// GetPlaybook returns a playbook by id.
func (e *Engine) GetPlaybook(id string) (*playbook.Playbook, error) {
	return e.playbooks.Get(id)
}

// ListPlaybooks returns all playbooks in registration order.
func (e *Engine) ListPlaybooks() []*playbook.Playbook {
	return e.playbooks.List()
}

// SetEnabled toggles a playbook and returns the updated definition.
func (e *Engine) SetEnabled(id string, enabled bool) (*playbook.Playbook, error) {
	p, err := e.playbooks.SetEnabled(id, enabled)
	if err != nil {
		return nil, err
	}
	slog.Info("playbook enabled flag changed", "playbook_id", id, "enabled", enabled)
	return p, nil
}

// RecentExecutions returns up to limit executions, newest first.
func (e *Engine) RecentExecutions(limit int) []*Execution {
	return e.history.Recent(limit)
}

// AutoExecute matches the threat against registered playbooks and executes
// the winner. If no enabled playbook matches, it returns ErrNoMatch and no
// execution record is created.
func (e *Engine) AutoExecute(ctx context.Context, threat *schema.Threat, ectx schema.Context) ExecutionResult {
	matched := e.matcher.Match(threat)
	if matched == nil {
		slog.Debug("no playbook matched",
			"threat_id", threat.ID,
			"threat_type", threat.Type,
			"severity", threat.Severity)
		return ExecutionResult{Err: fmt.Errorf("%w for %s/%s", ErrNoMatch, threat.Type, threat.Severity)}
	}
	return e.Execute(ctx, matched.ID, threat, ectx)
}

// Execute runs the identified playbook against the threat. A missing or
// disabled playbook fails up front without creating an execution record.
func (e *Engine) Execute(ctx context.Context, playbookID string, threat *schema.Threat, ectx schema.Context) ExecutionResult {
	pb, err := e.playbooks.Get(playbookID)
	if err != nil {
		return ExecutionResult{Err: err}
	}
	if !pb.Enabled {
		return ExecutionResult{Err: fmt.Errorf("%w: %s", playbook.ErrDisabled, playbookID)}
	}

	exec := &Execution{
		ID:           uuid.New(),
		PlaybookID:   pb.ID,
		PlaybookName: pb.Name,
		ThreatID:     threat.ID,
		ThreatType:   threat.Type,
		Severity:     threat.Severity,
		StartedAt:    time.Now().UTC(),
		Status:       ExecutionRunning,
	}

	slog.Info("executing playbook",
		"playbook", pb.Name,
		"execution_id", exec.ID,
		"threat_id", threat.ID,
		"threat_type", threat.Type)

	e.run(ctx, pb, threat, ectx, exec)

	exec.CompletedAt = time.Now().UTC()
	exec.DurationMs = exec.CompletedAt.Sub(exec.StartedAt).Milliseconds()

	e.history.Append(exec)
	e.notifySinks(exec)

	slog.Info("playbook finished",
		"playbook", pb.Name,
		"execution_id", exec.ID,
		"status", exec.Status,
		"actions", len(exec.Actions),
		"duration_ms", exec.DurationMs)

	result := ExecutionResult{
		Success:   exec.Status == ExecutionCompleted,
		Execution: exec,
	}
	if exec.Status == ExecutionError {
		result.Err = errors.New(exec.Error)
	}
	return result
}

// run drives the action loop. A panic inside the engine's own
// orchestration surfaces as ExecutionError rather than crashing the host.
func (e *Engine) run(ctx context.Context, pb *playbook.Playbook, threat *schema.Threat, ectx schema.Context, exec *Execution) {
	defer func() {
		if r := recover(); r != nil {
			exec.Status = ExecutionError
			exec.Error = fmt.Sprintf("engine fault: %v", r)
			slog.Error("engine panic during execution",
				"execution_id", exec.ID,
				"panic", r)
		}
	}()

	actions := make([]playbook.Action, len(pb.Actions))
	copy(actions, pb.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})

	for _, act := range actions {
		if ctx.Err() != nil {
			exec.Status = ExecutionError
			exec.Error = "cancelled"
			return
		}

		result, cancelled := e.runAction(ctx, act, threat, ectx)
		exec.Actions = append(exec.Actions, result)

		if cancelled {
			exec.Status = ExecutionError
			exec.Error = "cancelled"
			return
		}

		if result.Status == ActionFailed {
			slog.Warn("action failed",
				"execution_id", exec.ID,
				"action_type", act.Type,
				"critical", act.Critical,
				"detail", result.Detail)
			if act.Critical {
				exec.Status = ExecutionFailed
				return
			}
		}
	}

	exec.Status = ExecutionCompleted
}

// runAction invokes one handler with its timeout applied. Handler errors
// and panics are converted to a failed result; the second return value is
// true when the parent context was cancelled mid-action.
func (e *Engine) runAction(ctx context.Context, act playbook.Action, threat *schema.Threat, ectx schema.Context) (ActionResult, bool) {
	started := time.Now().UTC()
	result := ActionResult{
		Type:       act.Type,
		Priority:   act.Priority,
		ExecutedAt: started,
	}

	h, ok := e.handlers.Resolve(act.Type)
	if !ok {
		result.Status = ActionFailed
		result.Detail = "unknown action type"
		result.DurationMs = time.Since(started).Milliseconds()
		return result, false
	}

	timeout := act.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultActionTimeout
	}
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *HandlerResult
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		res, err := h.Execute(actionCtx, threat, ectx, act.Params)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err != nil:
			result.Status = ActionFailed
			result.Detail = out.err.Error()
		case out.res == nil:
			result.Status = ActionFailed
			result.Detail = "handler returned no result"
		case !out.res.Success:
			result.Status = ActionFailed
			result.Detail = out.res.Message
			result.Output = out.res.Output
		default:
			result.Status = ActionCompleted
			result.Detail = out.res.Message
			result.Output = out.res.Output
		}
	case <-actionCtx.Done():
		if ctx.Err() != nil {
			result.Status = ActionFailed
			result.Detail = "cancelled"
			result.DurationMs = time.Since(started).Milliseconds()
			return result, true
		}
		result.Status = ActionFailed
		result.Detail = "timeout"
	}

	result.DurationMs = time.Since(started).Milliseconds()
	return result, false
}

func (e *Engine) notifySinks(exec *Execution) {
	e.sinkMu.RLock()
	sinks := e.sinks
	e.sinkMu.RUnlock()

	for _, s := range sinks {
		s(exec)
	}
}

// PlaybookStats is the per-playbook execution rollup.
type PlaybookStats struct {
	Name       string `json:"name"`
	Executions int    `json:"executions"`
	Successes  int    `json:"successes"`
	Failures   int    `json:"failures"`
}

// Statistics aggregates registry and history counters. Cost is bounded by
// the history capacity.
type Statistics struct {
	TotalPlaybooks       int                      `json:"total_playbooks"`
	EnabledPlaybooks     int                      `json:"enabled_playbooks"`
	TotalExecutions      int                      `json:"total_executions"`
	SuccessfulExecutions int                      `json:"successful_executions"`
	FailedExecutions     int                      `json:"failed_executions"`
	ByPlaybook           map[string]PlaybookStats `json:"by_playbook"`
}

// Statistics computes aggregate counters over the retained history. It is
// read-only and idempotent.
func (e *Engine) Statistics() Statistics {
	total, enabled := e.playbooks.Counts()

	stats := Statistics{
		TotalPlaybooks:   total,
		EnabledPlaybooks: enabled,
		ByPlaybook:       make(map[string]PlaybookStats),
	}

	for _, exec := range e.history.Recent(0) {
		stats.TotalExecutions++
		ps := stats.ByPlaybook[exec.PlaybookID]
		ps.Name = exec.PlaybookName
		ps.Executions++
		if exec.Status == ExecutionCompleted {
			stats.SuccessfulExecutions++
			ps.Successes++
		} else {
			stats.FailedExecutions++
			ps.Failures++
		}
		stats.ByPlaybook[exec.PlaybookID] = ps
	}

	return stats
}
