package playbook

import (
	"os"
	"path/filepath"
	"testing"

	"shield-respond/internal/schema"
)

const testPlaybookYAML = `
playbooks:
  - id: spam-digest
    name: Spam Digest
    description: Routes spam reports to the digest queue
    trigger:
      threat_type: spam
      severities: [low, medium]
    actions:
      - type: ticket
        priority: 1
        params:
          queue: spam-digest
  - id: ddos-mitigation
    name: DDoS Mitigation
    trigger:
      threat_type: ddos
      severities: [high, critical]
    actions:
      - type: block_ip
        priority: 1
        critical: true
        timeout: 15s
        params:
          list: blocked-sources
      - type: alert
        priority: 2
        params:
          channel: network-ops
`

func writeTempPlaybooks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp playbook file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	r := NewRegistry()
	path := writeTempPlaybooks(t, testPlaybookYAML)

	n, err := LoadFile(r, path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadFile() = %d, want 2", n)
	}

	ddos, err := r.Get("ddos-mitigation")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ddos.Trigger.ThreatType != schema.ThreatDDoS {
		t.Errorf("ThreatType = %s, want ddos", ddos.Trigger.ThreatType)
	}
	if len(ddos.Actions) != 2 {
		t.Fatalf("Actions len = %d, want 2", len(ddos.Actions))
	}
	if !ddos.Actions[0].Critical {
		t.Error("first action should be critical")
	}
	if ddos.Actions[0].Timeout.Seconds() != 15 {
		t.Errorf("Timeout = %v, want 15s", ddos.Actions[0].Timeout)
	}
	if got := ddos.Actions[0].Params["list"]; got != "blocked-sources" {
		t.Errorf("Params[list] = %v, want blocked-sources", got)
	}
}

func TestLoadFile_InvalidDefinition(t *testing.T) {
	r := NewRegistry()
	path := writeTempPlaybooks(t, `
playbooks:
  - id: ok
    name: OK
    trigger:
      threat_type: spam
      severities: [low]
    actions:
      - type: ticket
        priority: 1
  - id: broken
    name: Broken
    trigger:
      threat_type: nonsense
      severities: [low]
    actions:
      - type: ticket
        priority: 1
`)

	if _, err := LoadFile(r, path); err == nil {
		t.Fatal("LoadFile() expected error for invalid threat type")
	}

	// Definitions before the bad one stay registered.
	if _, err := r.Get("ok"); err != nil {
		t.Errorf("Get(ok) error = %v", err)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	r := NewRegistry()
	if _, err := LoadFile(r, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile() expected error for missing file")
	}
}

func TestRegisterBuiltIn(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltIn(r); err != nil {
		t.Fatalf("RegisterBuiltIn() error = %v", err)
	}

	list := r.List()
	if len(list) == 0 {
		t.Fatal("RegisterBuiltIn() registered no playbooks")
	}
	for _, p := range list {
		if err := p.Validate(); err != nil {
			t.Errorf("built-in playbook %s invalid: %v", p.ID, err)
		}
		if !p.Enabled {
			t.Errorf("built-in playbook %s should be enabled", p.ID)
		}
	}
}
