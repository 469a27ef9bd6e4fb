package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "no brokers",
			mutate:  func(c *Config) { c.Brokers = nil },
			wantErr: true,
		},
		{
			name:    "missing threats topic",
			mutate:  func(c *Config) { c.ThreatsTopic = "" },
			wantErr: true,
		},
		{
			name:    "missing executions topic",
			mutate:  func(c *Config) { c.ExecutionsTopic = "" },
			wantErr: true,
		},
		{
			name:    "missing consumer group",
			mutate:  func(c *Config) { c.ConsumerGroup = "" },
			wantErr: true,
		},
		{
			name:    "bad security protocol",
			mutate:  func(c *Config) { c.SecurityProtocol = "KERBEROS" },
			wantErr: true,
		},
		{
			name: "sasl without credentials",
			mutate: func(c *Config) {
				c.SecurityProtocol = "SASL_SSL"
				c.SASLMechanism = "SCRAM-SHA-256"
			},
			wantErr: true,
		},
		{
			name: "sasl with credentials",
			mutate: func(c *Config) {
				c.SecurityProtocol = "SASL_SSL"
				c.SASLMechanism = "SCRAM-SHA-512"
				c.SASLUsername = "respond"
				c.SASLPassword = "secret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetCompression(t *testing.T) {
	tests := []struct {
		input string
		want  kafkago.Compression
	}{
		{"gzip", kafkago.Gzip},
		{"snappy", kafkago.Snappy},
		{"lz4", kafkago.Lz4},
		{"zstd", kafkago.Zstd},
		{"none", 0},
		{"", 0},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.CompressionType = tt.input
		if got := cfg.GetCompression(); got != tt.want {
			t.Errorf("GetCompression(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

type stubResponder struct {
	calls   int
	threats []*schema.Threat
	result  respond.ExecutionResult
}

func (s *stubResponder) AutoExecute(ctx context.Context, threat *schema.Threat, ectx schema.Context) respond.ExecutionResult {
	s.calls++
	s.threats = append(s.threats, threat)
	return s.result
}

func newTestIntake(t *testing.T, responder Responder) *Intake {
	t.Helper()

	in, err := NewIntake(DefaultConfig(), responder, slog.Default())
	if err != nil {
		t.Fatalf("NewIntake() error = %v", err)
	}
	t.Cleanup(func() { in.cancel() })
	return in
}

func envelopeMessage(t *testing.T, threat schema.Threat, ectx schema.Context) kafkago.Message {
	t.Helper()

	data, err := json.Marshal(threatEnvelope{Threat: threat, Context: ectx})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return kafkago.Message{Key: []byte(threat.ID), Value: data}
}

func TestIntake_Handle(t *testing.T) {
	responder := &stubResponder{result: respond.ExecutionResult{Success: true}}
	in := newTestIntake(t, responder)

	threat := schema.Threat{
		ID:         "thr-1",
		Type:       schema.ThreatMalware,
		Severity:   schema.SeverityCritical,
		Source:     "10.0.0.8",
		DetectedAt: time.Now().UTC(),
	}

	in.handle(envelopeMessage(t, threat, schema.Context{"file_path": "/tmp/x"}))

	if responder.calls != 1 {
		t.Fatalf("responder calls = %d, want 1", responder.calls)
	}
	if responder.threats[0].ID != "thr-1" {
		t.Errorf("threat ID = %q, want thr-1", responder.threats[0].ID)
	}

	m := in.Metrics()
	if m.Consumed != 1 || m.Executed != 1 {
		t.Errorf("metrics = %+v, want consumed=1 executed=1", m)
	}
}

func TestIntake_HandleMalformed(t *testing.T) {
	responder := &stubResponder{}
	in := newTestIntake(t, responder)

	in.handle(kafkago.Message{Value: []byte("{not json")})

	if responder.calls != 0 {
		t.Error("responder should not be called for malformed messages")
	}
	if m := in.Metrics(); m.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", m.Invalid)
	}
}

func TestIntake_HandleInvalidThreat(t *testing.T) {
	responder := &stubResponder{}
	in := newTestIntake(t, responder)

	// Missing severity and source.
	threat := schema.Threat{
		ID:         "thr-2",
		Type:       schema.ThreatPhishing,
		DetectedAt: time.Now().UTC(),
	}
	in.handle(envelopeMessage(t, threat, nil))

	if responder.calls != 0 {
		t.Error("responder should not be called for invalid threats")
	}
	if m := in.Metrics(); m.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", m.Invalid)
	}
}

func TestIntake_HandleNoMatch(t *testing.T) {
	responder := &stubResponder{result: respond.ExecutionResult{
		Err: respond.ErrNoMatch,
	}}
	in := newTestIntake(t, responder)

	threat := schema.Threat{
		ID:         "thr-3",
		Type:       schema.ThreatSpam,
		Severity:   schema.SeverityLow,
		Source:     "mail-gw",
		DetectedAt: time.Now().UTC(),
	}
	in.handle(envelopeMessage(t, threat, nil))

	m := in.Metrics()
	if m.NoMatch != 1 || m.Executed != 0 || m.Failed != 0 {
		t.Errorf("metrics = %+v, want no_match=1 only", m)
	}
}

func TestIntake_RequiresResponder(t *testing.T) {
	if _, err := NewIntake(DefaultConfig(), nil, slog.Default()); err == nil {
		t.Error("NewIntake() with nil responder should fail")
	}
}
