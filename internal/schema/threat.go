// Package schema defines the canonical threat record consumed by the
// response engine. Detectors normalize their classification output to this
// structure before handing it off; the engine never mutates it.
package schema

import (
	"time"
)

// Threat is an immutable classification result produced by an external
// detector (text/voice classifier, network IDS, phishing screen).
type Threat struct {
	// Required fields
	ID         string     `json:"id" validate:"required,max=128"`
	Type       ThreatType `json:"type" validate:"required,threat_type"`
	Severity   Severity   `json:"severity" validate:"required,severity"`
	Source     string     `json:"source" validate:"required,max=1024"`
	DetectedAt time.Time  `json:"detected_at" validate:"required"`

	// Optional fields
	Detector string         `json:"detector,omitempty" validate:"max=256"`
	Score    float64        `json:"score,omitempty" validate:"min=0,max=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context carries request-scoped data (file path, user id, session token)
// passed through unchanged to every action handler.
type Context map[string]any

// ThreatType tags the category of a detected threat.
type ThreatType string

const (
	ThreatMalware          ThreatType = "malware"
	ThreatIntrusion        ThreatType = "intrusion"
	ThreatPhishing         ThreatType = "phishing"
	ThreatSpam             ThreatType = "spam"
	ThreatDDoS             ThreatType = "ddos"
	ThreatBruteForce       ThreatType = "brute_force"
	ThreatDataExfiltration ThreatType = "data_exfiltration"
)

// IsValid checks if the threat type is a known value.
func (t ThreatType) IsValid() bool {
	switch t {
	case ThreatMalware, ThreatIntrusion, ThreatPhishing, ThreatSpam,
		ThreatDDoS, ThreatBruteForce, ThreatDataExfiltration:
		return true
	}
	return false
}

// Severity is the ordered severity scale assigned by detectors.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRanks orders severities for comparison. Higher is more severe.
var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank returns the ordinal position of the severity (low=1 .. critical=4).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// SchemaVersionCurrent is the current version of the threat schema.
const SchemaVersionCurrent = "1.0.0"
