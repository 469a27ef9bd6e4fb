package playbook

import (
	"testing"
	"time"

	"shield-respond/internal/schema"
)

func matcherThreat(tt schema.ThreatType, sev schema.Severity) *schema.Threat {
	return &schema.Threat{
		ID:         "thr-1",
		Type:       tt,
		Severity:   sev,
		Source:     "198.51.100.4",
		DetectedAt: time.Now().UTC(),
	}
}

func TestMatcher_Match(t *testing.T) {
	r := NewRegistry()
	m := NewMatcher(r)

	high := testPlaybook("malware-high")

	lowOnly := testPlaybook("malware-low")
	lowOnly.Trigger.Severities = []schema.Severity{schema.SeverityLow}

	phishing := testPlaybook("phishing")
	phishing.Trigger.ThreatType = schema.ThreatPhishing

	for _, p := range []*Playbook{high, lowOnly, phishing} {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%s) error = %v", p.ID, err)
		}
	}

	tests := []struct {
		name   string
		threat *schema.Threat
		wantID string
	}{
		{
			name:   "type and severity match",
			threat: matcherThreat(schema.ThreatMalware, schema.SeverityHigh),
			wantID: "malware-high",
		},
		{
			name:   "severity routes to different playbook",
			threat: matcherThreat(schema.ThreatMalware, schema.SeverityLow),
			wantID: "malware-low",
		},
		{
			name:   "type routes to different playbook",
			threat: matcherThreat(schema.ThreatPhishing, schema.SeverityCritical),
			wantID: "phishing",
		},
		{
			name:   "no playbook for type",
			threat: matcherThreat(schema.ThreatDDoS, schema.SeverityHigh),
			wantID: "",
		},
		{
			name:   "no playbook for severity",
			threat: matcherThreat(schema.ThreatMalware, schema.SeverityMedium),
			wantID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.threat)
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("Match() = %s, want nil", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("Match() = nil, want %s", tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Errorf("Match() = %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

func TestMatcher_FirstMatchWins(t *testing.T) {
	r := NewRegistry()
	m := NewMatcher(r)

	first := testPlaybook("registered-first")
	second := testPlaybook("registered-second")

	if err := r.Register(first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(second); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	threat := matcherThreat(schema.ThreatMalware, schema.SeverityHigh)

	// Deterministic across repeated calls.
	for i := 0; i < 50; i++ {
		got := m.Match(threat)
		if got == nil || got.ID != "registered-first" {
			t.Fatalf("Match() iteration %d = %v, want registered-first", i, got)
		}
	}
}

func TestMatcher_DisabledExclusion(t *testing.T) {
	r := NewRegistry()
	m := NewMatcher(r)

	first := testPlaybook("registered-first")
	second := testPlaybook("registered-second")
	if err := r.Register(first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(second); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	threat := matcherThreat(schema.ThreatMalware, schema.SeverityHigh)

	// Disabling the first exposes the second.
	if _, err := r.SetEnabled("registered-first", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got := m.Match(threat); got == nil || got.ID != "registered-second" {
		t.Fatalf("Match() with first disabled = %v, want registered-second", got)
	}

	// Disabling both yields no match.
	if _, err := r.SetEnabled("registered-second", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got := m.Match(threat); got != nil {
		t.Fatalf("Match() with all disabled = %s, want nil", got.ID)
	}

	// Re-enabling restores the original winner.
	if _, err := r.SetEnabled("registered-first", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got := m.Match(threat); got == nil || got.ID != "registered-first" {
		t.Fatalf("Match() after re-enable = %v, want registered-first", got)
	}
}
