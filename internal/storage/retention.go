package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionConfig holds TTL settings for the execution tables.
type RetentionConfig struct {
	ExecutionsTTL time.Duration `yaml:"executions_ttl"`
}

// DefaultRetentionConfig keeps executions for 90 days.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		ExecutionsTTL: 90 * 24 * time.Hour,
	}
}

// RetentionManager applies data retention policies.
type RetentionManager struct {
	client *ClickHouseClient
	config RetentionConfig
}

// NewRetentionManager creates a new retention manager.
func NewRetentionManager(client *ClickHouseClient, config RetentionConfig) *RetentionManager {
	return &RetentionManager{
		client: client,
		config: config,
	}
}

// ApplyTTLs updates table TTLs to match the configured retention. Called
// after migrations have run.
func (r *RetentionManager) ApplyTTLs(ctx context.Context) error {
	if r.config.ExecutionsTTL <= 0 {
		return nil
	}

	days := int(r.config.ExecutionsTTL.Hours() / 24)
	if days < 1 {
		days = 1
	}

	query := fmt.Sprintf(
		"ALTER TABLE playbook_executions MODIFY TTL started_at + INTERVAL %d DAY DELETE",
		days,
	)

	if err := r.client.Exec(ctx, query); err != nil {
		return WrapQueryError("ApplyTTLs", "playbook_executions", err)
	}

	slog.Info("applied retention policy",
		"table", "playbook_executions",
		"ttl_days", days,
	)

	return nil
}

// DropPartition drops a monthly partition, for manual cleanup.
func (r *RetentionManager) DropPartition(ctx context.Context, partition string) error {
	query := fmt.Sprintf("ALTER TABLE playbook_executions DROP PARTITION '%s'", partition)

	if err := r.client.Exec(ctx, query); err != nil {
		return WrapQueryError("DropPartition", "playbook_executions", err)
	}

	slog.Info("dropped partition", "partition", partition)
	return nil
}
