package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shield-respond/internal/respond"
)

// CompressionType selects how archive objects are compressed.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
)

// uploader is the slice of Client used by the archiver.
type uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ArchiverConfig holds archiver settings.
type ArchiverConfig struct {
	// BatchSize is how many executions go into one archive object.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval bounds how long a partial batch can wait.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Compression for archive objects.
	Compression CompressionType `yaml:"compression"`
}

// DefaultArchiverConfig returns archiver defaults.
func DefaultArchiverConfig() ArchiverConfig {
	return ArchiverConfig{
		BatchSize:     500,
		FlushInterval: 15 * time.Minute,
		Compression:   CompressionGzip,
	}
}

// Archiver batches execution records into NDJSON objects and uploads them.
// Objects are keyed by flush date so a day's executions sit under one
// prefix.
type Archiver struct {
	client uploader
	config ArchiverConfig
	logger *slog.Logger

	buffer []*respond.Execution
	mu     sync.Mutex

	flushTimer *time.Timer
	closed     bool

	archived atomic.Int64
	failed   atomic.Int64
}

// NewArchiver creates an Archiver over the given client.
func NewArchiver(client *Client, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return newArchiver(client, cfg, logger)
}

func newArchiver(client uploader, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	a := &Archiver{
		client: client,
		config: cfg,
		logger: logger,
		buffer: make([]*respond.Execution, 0, cfg.BatchSize),
	}

	a.flushTimer = time.AfterFunc(cfg.FlushInterval, a.timerFlush)

	return a
}

// Add queues one execution record for archival.
func (a *Archiver) Add(exec *respond.Execution) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	a.buffer = append(a.buffer, exec)

	if len(a.buffer) >= a.config.BatchSize {
		if err := a.flushLocked(); err != nil {
			a.logger.Error("archive flush failed", "error", err)
		}
	}
}

// Sink adapts the archiver into an engine sink.
func (a *Archiver) Sink() respond.Sink {
	return func(exec *respond.Execution) {
		a.Add(exec)
	}
}

func (a *Archiver) timerFlush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	if len(a.buffer) > 0 {
		if err := a.flushLocked(); err != nil {
			a.logger.Error("archive timer flush failed", "error", err)
		}
	}

	a.flushTimer.Reset(a.config.FlushInterval)
}

// flushLocked uploads the buffered records. Caller must hold the lock.
func (a *Archiver) flushLocked() error {
	if len(a.buffer) == 0 {
		return nil
	}

	execs := a.buffer
	a.buffer = make([]*respond.Execution, 0, a.config.BatchSize)

	data, err := encodeNDJSON(execs)
	if err != nil {
		a.failed.Add(int64(len(execs)))
		return fmt.Errorf("s3: failed to encode archive batch: %w", err)
	}

	key := a.generateKey(time.Now().UTC())
	contentType := "application/x-ndjson"

	if a.config.Compression == CompressionGzip {
		data, err = compressGzip(data)
		if err != nil {
			a.failed.Add(int64(len(execs)))
			return fmt.Errorf("s3: failed to compress archive batch: %w", err)
		}
		key += ".gz"
		contentType = "application/gzip"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	location, err := a.client.Upload(ctx, key, data, contentType)
	if err != nil {
		a.failed.Add(int64(len(execs)))
		return err
	}

	a.archived.Add(int64(len(execs)))
	a.logger.Info("archived executions",
		"count", len(execs),
		"location", location,
	)

	return nil
}

// Flush forces an upload of the current buffer.
func (a *Archiver) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

// Close flushes remaining records and stops the timer.
func (a *Archiver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.flushTimer.Stop()
	err := a.flushLocked()
	a.closed = true
	return err
}

// ArchivedCount returns how many records have been archived and how many
// were dropped on upload failure.
func (a *Archiver) ArchivedCount() (archived, failed int64) {
	return a.archived.Load(), a.failed.Load()
}

// generateKey builds the object key: 2026/01/31/<uuid>.ndjson
func (a *Archiver) generateKey(now time.Time) string {
	return fmt.Sprintf("%s/%s.ndjson", now.Format("2006/01/02"), uuid.NewString())
}

func encodeNDJSON(execs []*respond.Execution) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, exec := range execs {
		if err := enc.Encode(exec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
