package playbook

import (
	"shield-respond/internal/schema"
)

// Matcher selects the applicable playbook for a threat.
//
// Matching walks playbooks in registration order and returns the first
// enabled playbook whose trigger threat type equals the threat's type and
// whose severity set contains the threat's severity. If two enabled
// playbooks could match the same threat the earlier registration always
// wins and the later one is unreachable for that type/severity pair;
// conflicting registrations are a configuration error the operator must
// avoid.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over the given registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match returns the first matching enabled playbook, or nil if none match.
func (m *Matcher) Match(threat *schema.Threat) *Playbook {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()

	for _, id := range m.registry.order {
		p := m.registry.byID[id]
		if !p.Enabled {
			continue
		}
		if p.Trigger.ThreatType != threat.Type {
			continue
		}
		if !p.Trigger.MatchesSeverity(threat.Severity) {
			continue
		}
		return clonePlaybook(p)
	}
	return nil
}
