package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"shield-respond/internal/respond"
)

// Publisher sends finished execution records to the executions topic,
// keyed by threat ID so all executions for one threat land on the same
// partition.
type Publisher struct {
	writer *kafka.Writer
	config *Config
	logger *slog.Logger
	closed atomic.Bool

	published atomic.Int64
	errors    atomic.Int64
	retries   atomic.Int64
}

// NewPublisher creates a publisher for execution records.
func NewPublisher(config *Config, logger *slog.Logger) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dialer, err := config.GetDialer()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.ExecutionsTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    config.ProducerBatchSize,
		BatchTimeout: config.ProducerBatchTimeout,
		MaxAttempts:  config.ProducerMaxRetries,
		WriteTimeout: config.WriteTimeout,
		ReadTimeout:  config.ReadTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Compression:  config.GetCompression(),
		Transport: &kafka.Transport{
			Dial: dialer.DialFunc,
			TLS:  dialer.TLS,
			SASL: dialer.SASLMechanism,
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	p := &Publisher{
		writer: writer,
		config: config,
		logger: logger,
	}

	logger.Info("execution publisher initialized",
		"brokers", config.Brokers,
		"topic", config.ExecutionsTopic,
		"compression", config.CompressionType,
	)

	return p, nil
}

// Publish sends one execution record, retrying with exponential backoff on
// transient failures.
func (p *Publisher) Publish(ctx context.Context, exec *respond.Execution) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal execution: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(exec.ThreatID),
		Value: data,
		Time:  time.Now(),
	}

	var lastErr error
	backoff := p.config.ProducerRetryBackoff

	for attempt := 0; attempt <= p.config.ProducerMaxRetries; attempt++ {
		if attempt > 0 {
			p.retries.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		if err := p.writer.WriteMessages(ctx, msg); err == nil {
			p.published.Add(1)
			p.logger.Debug("published execution",
				"execution_id", exec.ID,
				"threat_id", exec.ThreatID,
				"status", exec.Status,
			)
			return nil
		} else {
			lastErr = err
			p.errors.Add(1)
			p.logger.Warn("execution publish failed",
				"error", err,
				"attempt", attempt+1,
			)
		}
	}

	return fmt.Errorf("kafka: failed after %d attempts: %w", p.config.ProducerMaxRetries+1, lastErr)
}

// Sink adapts the publisher into an engine sink. Publish errors are logged
// rather than surfaced; a broker outage must not fail executions.
func (p *Publisher) Sink() respond.Sink {
	return func(exec *respond.Execution) {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
		defer cancel()

		if err := p.Publish(ctx, exec); err != nil {
			p.logger.Error("failed to publish execution record",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}
}

// Metrics reports publisher counters.
func (p *Publisher) Metrics() (published, errors, retries int64) {
	return p.published.Load(), p.errors.Load(), p.retries.Load()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
