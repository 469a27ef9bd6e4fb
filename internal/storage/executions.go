package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shield-respond/internal/respond"
)

// ExecutionWriterConfig holds configuration for the execution writer.
type ExecutionWriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// DefaultExecutionWriterConfig returns the default writer configuration.
func DefaultExecutionWriterConfig() ExecutionWriterConfig {
	return ExecutionWriterConfig{
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

// ExecutionWriter batches execution records into ClickHouse. Records are
// buffered and flushed when the batch fills or the interval elapses.
type ExecutionWriter struct {
	client *ClickHouseClient
	config ExecutionWriterConfig

	buffer []*respond.Execution
	mu     sync.Mutex

	flushTimer *time.Timer
	closed     bool

	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64
	batchCount   atomic.Uint64
}

// NewExecutionWriter creates an ExecutionWriter.
func NewExecutionWriter(client *ClickHouseClient, cfg ExecutionWriterConfig) *ExecutionWriter {
	w := &ExecutionWriter{
		client: client,
		config: cfg,
		buffer: make([]*respond.Execution, 0, cfg.BatchSize),
	}

	w.flushTimer = time.AfterFunc(cfg.FlushInterval, w.timerFlush)

	return w
}

// Write adds an execution record to the batch.
func (w *ExecutionWriter) Write(exec *respond.Execution) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	w.buffer = append(w.buffer, exec)

	if len(w.buffer) >= w.config.BatchSize {
		return w.flushLocked()
	}

	return nil
}

// Sink adapts the writer into an engine sink. Write errors are logged
// rather than surfaced; storage trouble must not fail executions.
func (w *ExecutionWriter) Sink() respond.Sink {
	return func(exec *respond.Execution) {
		if err := w.Write(exec); err != nil {
			slog.Error("failed to persist execution record",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}
}

func (w *ExecutionWriter) timerFlush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if len(w.buffer) > 0 {
		if err := w.flushLocked(); err != nil {
			slog.Error("timer flush failed", "error", err)
		}
	}

	w.flushTimer.Reset(w.config.FlushInterval)
}

// flushLocked flushes the buffer. Caller must hold the lock.
func (w *ExecutionWriter) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}

	execs := w.buffer
	w.buffer = make([]*respond.Execution, 0, w.config.BatchSize)

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.config.RetryDelay * time.Duration(attempt))
		}

		if err := w.insertBatch(execs); err != nil {
			lastErr = err
			slog.Warn("execution batch insert failed, retrying",
				"attempt", attempt+1,
				"max_retries", w.config.MaxRetries,
				"error", err,
			)
			continue
		}

		w.totalWritten.Add(uint64(len(execs)))
		w.batchCount.Add(1)
		return nil
	}

	w.totalFailed.Add(uint64(len(execs)))
	return fmt.Errorf("%w: after %d retries: %v", ErrBatchInsertFailed, w.config.MaxRetries, lastErr)
}

func (w *ExecutionWriter) insertBatch(execs []*respond.Execution) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := w.client.PrepareBatch(ctx, `
		INSERT INTO playbook_executions (
			execution_id, playbook_id, playbook_name,
			threat_id, threat_type, severity,
			status, error, started_at, completed_at, duration_ms, actions
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, exec := range execs {
		actions, err := json.Marshal(exec.Actions)
		if err != nil {
			actions = []byte("[]")
		}

		err = batch.Append(
			exec.ID,
			exec.PlaybookID,
			exec.PlaybookName,
			exec.ThreatID,
			string(exec.ThreatType),
			string(exec.Severity),
			string(exec.Status),
			exec.Error,
			exec.StartedAt,
			exec.CompletedAt,
			uint64(exec.DurationMs),
			string(actions),
		)
		if err != nil {
			return fmt.Errorf("failed to append execution: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	slog.Debug("execution batch inserted", "count", len(execs))
	return nil
}

// Flush forces a flush of the current buffer.
func (w *ExecutionWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close stops the flush timer and flushes remaining records.
func (w *ExecutionWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.flushTimer.Stop()
	err := w.flushLocked()
	w.closed = true
	w.mu.Unlock()
	return err
}

// Metrics returns writer statistics.
func (w *ExecutionWriter) Metrics() ExecutionWriterMetrics {
	w.mu.Lock()
	pending := len(w.buffer)
	w.mu.Unlock()

	return ExecutionWriterMetrics{
		Written: w.totalWritten.Load(),
		Failed:  w.totalFailed.Load(),
		Batches: w.batchCount.Load(),
		Pending: pending,
	}
}

// ExecutionWriterMetrics holds writer statistics.
type ExecutionWriterMetrics struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Batches uint64 `json:"batches"`
	Pending int    `json:"pending"`
}
