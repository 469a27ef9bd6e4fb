package playbook

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"shield-respond/internal/schema"
)

// playbookFile is the on-disk YAML layout for playbook definitions.
type playbookFile struct {
	Playbooks []*Playbook `yaml:"playbooks"`
}

// LoadFile reads playbook definitions from a YAML file and registers them
// in declaration order. Registration stops at the first invalid definition
// so a bad file never leaves the registry half-configured silently.
func LoadFile(registry *Registry, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read playbook file: %w", err)
	}

	var file playbookFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse playbook file: %w", err)
	}

	for i, p := range file.Playbooks {
		if err := registry.Register(p); err != nil {
			return i, fmt.Errorf("playbook %d (%s): %w", i, p.ID, err)
		}
	}

	slog.Info("loaded playbooks from file", "path", path, "count", len(file.Playbooks))
	return len(file.Playbooks), nil
}

// RegisterBuiltIn registers the built-in playbooks.
func RegisterBuiltIn(registry *Registry) error {
	for _, p := range BuiltInPlaybooks() {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("built-in playbook %s: %w", p.ID, err)
		}
	}
	return nil
}

// BuiltInPlaybooks returns the default response playbooks shipped with the
// engine. Operators typically extend or replace these from configuration.
func BuiltInPlaybooks() []*Playbook {
	return []*Playbook{
		{
			ID:          "malware-containment",
			Name:        "Malware Containment",
			Description: "Quarantines the malicious file, blocks the origin, and alerts the security team",
			Trigger: TriggerConditions{
				ThreatType: schema.ThreatMalware,
				Severities: []schema.Severity{schema.SeverityHigh, schema.SeverityCritical},
			},
			Actions: []Action{
				{
					Type:     "quarantine_file",
					Priority: 1,
					Critical: true,
					Timeout:  30 * time.Second,
				},
				{
					Type:     "block_ip",
					Priority: 2,
					Params: map[string]any{
						"list":     "blocked-sources",
						"duration": "24h",
					},
				},
				{
					Type:     "alert",
					Priority: 3,
					Params: map[string]any{
						"channel":  "security-critical",
						"priority": "P1",
					},
				},
			},
		},
		{
			ID:          "intrusion-lockdown",
			Name:        "Network Intrusion Lockdown",
			Description: "Blocks the attacking address before collecting evidence and raising a ticket",
			Trigger: TriggerConditions{
				ThreatType: schema.ThreatIntrusion,
				Severities: []schema.Severity{schema.SeverityMedium, schema.SeverityHigh, schema.SeverityCritical},
			},
			Actions: []Action{
				{
					Type:     "block_ip",
					Priority: 1,
					Critical: true,
					Params: map[string]any{
						"list":     "blocked-sources",
						"duration": "72h",
					},
				},
				{
					Type:     "ticket",
					Priority: 2,
					Params: map[string]any{
						"queue":    "security-incidents",
						"priority": "high",
					},
				},
				{
					Type:     "notify",
					Priority: 3,
					Params: map[string]any{
						"channel": "soc-oncall",
					},
				},
			},
		},
		{
			ID:          "phishing-response",
			Name:        "Phishing Response",
			Description: "Revokes exposed sessions and notifies the affected user",
			Trigger: TriggerConditions{
				ThreatType: schema.ThreatPhishing,
				Severities: []schema.Severity{schema.SeverityHigh, schema.SeverityCritical},
			},
			Actions: []Action{
				{
					Type:     "revoke_tokens",
					Priority: 1,
					Critical: true,
				},
				{
					Type:     "notify",
					Priority: 2,
					Params: map[string]any{
						"channel": "user-security",
					},
				},
				{
					Type:     "ticket",
					Priority: 3,
					Params: map[string]any{
						"queue": "phishing-reports",
					},
				},
			},
		},
		{
			ID:          "brute-force-throttle",
			Name:        "Brute Force Throttle",
			Description: "Blocks the source of repeated authentication failures",
			Trigger: TriggerConditions{
				ThreatType: schema.ThreatBruteForce,
				Severities: []schema.Severity{schema.SeverityMedium, schema.SeverityHigh, schema.SeverityCritical},
			},
			Actions: []Action{
				{
					Type:     "block_ip",
					Priority: 1,
					Critical: true,
					Params: map[string]any{
						"list":     "blocked-sources",
						"duration": "1h",
					},
				},
				{
					Type:     "alert",
					Priority: 2,
					Params: map[string]any{
						"channel": "auth-alerts",
					},
				},
			},
		},
		{
			ID:          "exfiltration-containment",
			Name:        "Data Exfiltration Containment",
			Description: "Cuts off the destination, revokes credentials, and escalates",
			Trigger: TriggerConditions{
				ThreatType: schema.ThreatDataExfiltration,
				Severities: []schema.Severity{schema.SeverityHigh, schema.SeverityCritical},
			},
			Actions: []Action{
				{
					Type:     "block_ip",
					Priority: 1,
					Critical: true,
					Params: map[string]any{
						"list":     "blocked-destinations",
						"duration": "168h",
					},
				},
				{
					Type:     "revoke_tokens",
					Priority: 2,
					Critical: true,
				},
				{
					Type:     "alert",
					Priority: 3,
					Params: map[string]any{
						"channel":  "security-critical",
						"priority": "P1",
					},
				},
				{
					Type:     "ticket",
					Priority: 4,
					Params: map[string]any{
						"queue":    "security-incidents",
						"priority": "critical",
					},
				},
			},
		},
	}
}
