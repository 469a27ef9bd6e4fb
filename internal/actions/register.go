package actions

import (
	"shield-respond/internal/respond"
)

// Config holds settings for the built-in handlers.
type Config struct {
	// AlertURL is the alerting gateway endpoint for alert/notify actions.
	AlertURL string `yaml:"alert_url"`

	// WebhookURL is the default target for generic webhook actions.
	WebhookURL string `yaml:"webhook_url"`

	// QuarantineDir is where quarantined files are moved.
	QuarantineDir string `yaml:"quarantine_dir"`
}

// DefaultConfig returns default handler settings.
func DefaultConfig() Config {
	return Config{
		QuarantineDir: "/var/lib/shield-respond/quarantine",
	}
}

// RegisterBuiltIn wires the built-in handlers into the engine. The Redis
// store may be nil, in which case the Redis-backed handlers are skipped
// and playbooks referencing them will record "unknown action type".
func RegisterBuiltIn(engine *respond.Engine, cfg Config, store RedisStore) {
	engine.RegisterHandler(NewAlertHandler(cfg.AlertURL))
	engine.RegisterHandler(NewNotifyHandler(cfg.AlertURL))
	engine.RegisterHandler(NewWebhookHandler("webhook", cfg.WebhookURL, nil))
	engine.RegisterHandler(NewQuarantineFileHandler(cfg.QuarantineDir))
	engine.RegisterHandler(NewTicketHandler())

	if store != nil {
		engine.RegisterHandler(NewBlockIPHandler(store))
		engine.RegisterHandler(NewRevokeTokensHandler(store))
	}
}
