// Package main is the entry point for the shield-respond service: it wires
// the response engine to the threat intake and the execution audit stores.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shield-respond/internal/actions"
	"shield-respond/internal/config"
	"shield-respond/internal/kafka"
	"shield-respond/internal/logging"
	"shield-respond/internal/playbook"
	"shield-respond/internal/respond"
	"shield-respond/internal/storage"
	s3archive "shield-respond/internal/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"history_size", cfg.Engine.HistorySize,
		"action_timeout", cfg.Engine.DefaultActionTimeout,
		"redis_enabled", cfg.Redis.Enabled,
		"kafka_enabled", cfg.Kafka.Enabled,
		"storage_enabled", cfg.Storage.Enabled,
		"archive_enabled", cfg.Archive.Enabled,
	)

	engine := respond.New(respond.Config{
		DefaultActionTimeout: cfg.Engine.DefaultActionTimeout,
		HistorySize:          cfg.Engine.HistorySize,
	})

	// Redis backs the blocklist and token revocation handlers.
	var redisStore *actions.GoRedisStore
	if cfg.Redis.Enabled {
		redisStore, err = actions.NewGoRedisStore(cfg.Redis.RedisConfig)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	var store actions.RedisStore
	if redisStore != nil {
		store = redisStore
	}
	actions.RegisterBuiltIn(engine, cfg.Actions, store)

	// Playbook definitions: stock set plus an optional file.
	if cfg.Playbooks.BuiltIn {
		if err := playbook.RegisterBuiltIn(engine.Playbooks()); err != nil {
			slog.Error("failed to register built-in playbooks", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Playbooks.File != "" {
		n, err := playbook.LoadFile(engine.Playbooks(), cfg.Playbooks.File)
		if err != nil {
			slog.Error("failed to load playbook file",
				"file", cfg.Playbooks.File,
				"loaded", n,
				"error", err,
			)
			os.Exit(1)
		}
		slog.Info("playbooks loaded from file", "file", cfg.Playbooks.File, "count", n)
	}

	total, enabled := engine.Playbooks().Counts()
	slog.Info("playbook registry ready", "enabled", enabled, "total", total)

	ctx := context.Background()

	// ClickHouse audit trail.
	var chClient *storage.ClickHouseClient
	var execWriter *storage.ExecutionWriter
	if cfg.Storage.Enabled {
		chClient, err = storage.NewClickHouseClient(cfg.Storage.ClickHouse)
		if err != nil {
			slog.Error("failed to connect to ClickHouse", "error", err)
			os.Exit(1)
		}

		migrator := storage.NewMigrator(chClient)
		if err := migrator.Run(ctx); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		retention := storage.NewRetentionManager(chClient, cfg.Storage.Retention)
		if err := retention.ApplyTTLs(ctx); err != nil {
			slog.Warn("failed to apply retention policy", "error", err)
		}

		execWriter = storage.NewExecutionWriter(chClient, cfg.Storage.Writer)
		engine.AddSink(execWriter.Sink())

		slog.Info("execution audit trail initialized",
			"hosts", cfg.Storage.ClickHouse.Hosts,
			"database", cfg.Storage.ClickHouse.Database,
		)
	}

	// S3 long-term archive.
	var archiver *s3archive.Archiver
	if cfg.Archive.Enabled {
		s3Client, err := s3archive.NewClient(ctx, &cfg.Archive.S3, logger)
		if err != nil {
			slog.Error("failed to initialize S3 client", "error", err)
			os.Exit(1)
		}

		archiver = s3archive.NewArchiver(s3Client, cfg.Archive.Archiver, logger)
		engine.AddSink(archiver.Sink())
	}

	// Kafka: threat intake in, execution records out.
	var intake *kafka.Intake
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher, err = kafka.NewPublisher(&cfg.Kafka.Config, logger)
		if err != nil {
			slog.Error("failed to create execution publisher", "error", err)
			os.Exit(1)
		}
		engine.AddSink(publisher.Sink())

		intake, err = kafka.NewIntake(&cfg.Kafka.Config, engine, logger)
		if err != nil {
			slog.Error("failed to create threat intake", "error", err)
			os.Exit(1)
		}
		if err := intake.Start(); err != nil {
			slog.Error("failed to start threat intake", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("shield-respond started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	// Stop taking new threats first, then drain the sinks.
	if intake != nil {
		if err := intake.Stop(); err != nil {
			slog.Error("intake stop error", "error", err)
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			slog.Error("publisher close error", "error", err)
		}
	}

	if archiver != nil {
		if err := archiver.Close(); err != nil {
			slog.Error("archiver close error", "error", err)
		}
	}

	if execWriter != nil {
		if err := execWriter.Close(); err != nil {
			slog.Error("execution writer close error", "error", err)
		}
	}

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			slog.Error("clickhouse close error", "error", err)
		}
	}

	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	stats := engine.Statistics()
	slog.Info("shutdown complete",
		"executions", stats.TotalExecutions,
		"successful", stats.SuccessfulExecutions,
		"failed", stats.FailedExecutions,
	)
}
