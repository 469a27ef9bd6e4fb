package schema

import (
	"strings"
	"testing"
	"time"
)

func validThreat() *Threat {
	return &Threat{
		ID:         "thr-001",
		Type:       ThreatMalware,
		Severity:   SeverityHigh,
		Source:     "203.0.113.7",
		DetectedAt: time.Now().UTC(),
		Detector:   "network-ids",
		Score:      0.92,
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		mutate  func(*Threat)
		wantErr bool
	}{
		{
			name:    "valid threat",
			mutate:  func(th *Threat) {},
			wantErr: false,
		},
		{
			name:    "missing id",
			mutate:  func(th *Threat) { th.ID = "" },
			wantErr: true,
		},
		{
			name:    "unknown threat type",
			mutate:  func(th *Threat) { th.Type = "ransomware" },
			wantErr: true,
		},
		{
			name:    "unknown severity",
			mutate:  func(th *Threat) { th.Severity = "extreme" },
			wantErr: true,
		},
		{
			name:    "missing source",
			mutate:  func(th *Threat) { th.Source = "" },
			wantErr: true,
		},
		{
			name:    "score above bound",
			mutate:  func(th *Threat) { th.Score = 1.5 },
			wantErr: true,
		},
		{
			name:    "detected too far in the past",
			mutate:  func(th *Threat) { th.DetectedAt = time.Now().UTC().Add(-48 * time.Hour) },
			wantErr: true,
		},
		{
			name:    "detected in the future",
			mutate:  func(th *Threat) { th.DetectedAt = time.Now().UTC().Add(time.Hour) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := validThreat()
			tt.mutate(th)
			err := v.Validate(th)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateTimestampDetail(t *testing.T) {
	v := NewValidator()
	th := validThreat()
	th.DetectedAt = time.Now().UTC().Add(-48 * time.Hour)

	err := v.Validate(th)
	if err == nil {
		t.Fatal("Validate() expected error for stale threat")
	}
	if !strings.Contains(err.Error(), "too old") {
		t.Errorf("Validate() error = %v, want mention of age bound", err)
	}
}

func TestSeverity_Rank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%s) = %d, want > Rank(%s) = %d",
				order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}

	if Severity("bogus").Rank() != 0 {
		t.Errorf("Rank(bogus) = %d, want 0", Severity("bogus").Rank())
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityLow) {
		t.Error("critical should be at least low")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low should not be at least medium")
	}
	if !SeverityHigh.AtLeast(SeverityHigh) {
		t.Error("severity should be at least itself")
	}
}

func TestThreatType_IsValid(t *testing.T) {
	valid := []ThreatType{
		ThreatMalware, ThreatIntrusion, ThreatPhishing, ThreatSpam,
		ThreatDDoS, ThreatBruteForce, ThreatDataExfiltration,
	}
	for _, tt := range valid {
		if !tt.IsValid() {
			t.Errorf("IsValid(%s) = false, want true", tt)
		}
	}
	if ThreatType("worm").IsValid() {
		t.Error("IsValid(worm) = true, want false")
	}
}
