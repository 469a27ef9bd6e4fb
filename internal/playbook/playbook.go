// Package playbook provides declarative incident-response playbooks and
// their registry. A playbook maps trigger conditions (threat type plus a
// severity set) to an ordered list of mitigation actions.
package playbook

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"shield-respond/internal/schema"
)

var (
	// ErrNotFound is returned when a playbook id is unknown.
	ErrNotFound = errors.New("playbook not found")
	// ErrDisabled is returned when execution is requested against a
	// disabled playbook.
	ErrDisabled = errors.New("playbook is disabled")
)

// ValidationError describes a malformed playbook registration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid playbook: %s %s", e.Field, e.Reason)
}

// Action is one step in a playbook. Type is resolved against the action
// handler registry at run time; Priority orders execution (1 runs first);
// a Critical action's failure halts the remaining actions.
type Action struct {
	Type     string         `json:"type" yaml:"type"`
	Priority int            `json:"priority" yaml:"priority"`
	Critical bool           `json:"critical" yaml:"critical"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TriggerConditions define when a playbook applies to a threat.
type TriggerConditions struct {
	ThreatType schema.ThreatType `json:"threat_type" yaml:"threat_type"`
	Severities []schema.Severity `json:"severities" yaml:"severities"`
}

// MatchesSeverity reports whether the severity is in the trigger set.
func (tc TriggerConditions) MatchesSeverity(sev schema.Severity) bool {
	for _, s := range tc.Severities {
		if s == sev {
			return true
		}
	}
	return false
}

// Playbook defines a named response to a class of threats. Apart from the
// Enabled flag a playbook is immutable after registration; redefinition
// requires removal and re-registration.
type Playbook struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger     TriggerConditions `json:"trigger" yaml:"trigger"`
	Actions     []Action          `json:"actions" yaml:"actions"`
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time         `json:"created_at" yaml:"-"`
}

// Validate checks structural requirements before registration.
func (p *Playbook) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len(p.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "must not be empty"}
	}
	if !p.Trigger.ThreatType.IsValid() {
		return &ValidationError{Field: "trigger.threat_type", Reason: fmt.Sprintf("unknown value %q", p.Trigger.ThreatType)}
	}
	if len(p.Trigger.Severities) == 0 {
		return &ValidationError{Field: "trigger.severities", Reason: "must not be empty"}
	}
	for _, s := range p.Trigger.Severities {
		if !s.IsValid() {
			return &ValidationError{Field: "trigger.severities", Reason: fmt.Sprintf("unknown value %q", s)}
		}
	}
	for i, a := range p.Actions {
		if a.Type == "" {
			return &ValidationError{Field: fmt.Sprintf("actions[%d].type", i), Reason: "is required"}
		}
		if a.Priority < 1 {
			return &ValidationError{Field: fmt.Sprintf("actions[%d].priority", i), Reason: "must be >= 1"}
		}
	}
	return nil
}

// Registry is the in-memory store of playbook definitions. It preserves
// registration order, which the matcher depends on for its first-match-wins
// guarantee.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Playbook
	order []string
}

// NewRegistry creates an empty playbook registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Playbook),
	}
}

// Register validates and stores a playbook. The stored playbook is enabled
// and stamped with the registration time regardless of the input's Enabled
// or CreatedAt fields.
func (r *Registry) Register(p *Playbook) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("%q already registered", p.ID)}
	}

	stored := clonePlaybook(p)
	stored.Enabled = true
	stored.CreatedAt = time.Now().UTC()

	r.byID[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return nil
}

// Get returns a copy of the playbook with the given id.
func (r *Registry) Get(id string) (*Playbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clonePlaybook(p), nil
}

// List returns copies of all playbooks in registration order.
func (r *Registry) List() []*Playbook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Playbook, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clonePlaybook(r.byID[id]))
	}
	return out
}

// Remove deletes a playbook definition. Past executions referencing the id
// remain valid.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips the enabled flag and returns the updated playbook.
// This is the only permitted mutation after registration.
func (r *Registry) SetEnabled(id string, enabled bool) (*Playbook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.Enabled = enabled
	return clonePlaybook(p), nil
}

// Counts returns the total and enabled playbook counts.
func (r *Registry) Counts() (total, enabled int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total = len(r.byID)
	for _, p := range r.byID {
		if p.Enabled {
			enabled++
		}
	}
	return total, enabled
}

// clonePlaybook copies a playbook so callers never share mutable state with
// the registry.
func clonePlaybook(p *Playbook) *Playbook {
	cp := *p
	cp.Actions = make([]Action, len(p.Actions))
	copy(cp.Actions, p.Actions)
	cp.Trigger.Severities = make([]schema.Severity, len(p.Trigger.Severities))
	copy(cp.Trigger.Severities, p.Trigger.Severities)
	return &cp
}
