package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

const defaultBlockDuration = 24 * time.Hour

// BlockIPHandler adds the threat source to a Redis blocklist set. The
// enforcement point (firewall, edge proxy) reads the set out of band.
type BlockIPHandler struct {
	store RedisStore
}

// NewBlockIPHandler creates a block_ip handler over the given store.
func NewBlockIPHandler(store RedisStore) *BlockIPHandler {
	return &BlockIPHandler{store: store}
}

func (h *BlockIPHandler) Type() string { return "block_ip" }

func (h *BlockIPHandler) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*respond.HandlerResult, error) {
	list := paramString(params, "list", "blocked-sources")
	duration := paramDuration(params, "duration", defaultBlockDuration)

	if threat.Source == "" {
		return &respond.HandlerResult{Success: false, Message: "threat has no source to block"}, nil
	}

	key := "blocklist:" + list
	if err := h.store.SAdd(ctx, key, threat.Source); err != nil {
		return nil, fmt.Errorf("blocklist add failed: %w", err)
	}
	if err := h.store.Expire(ctx, key, duration); err != nil {
		return nil, fmt.Errorf("blocklist expire failed: %w", err)
	}

	slog.Info("blocked threat source",
		"source", threat.Source,
		"list", list,
		"duration", duration)

	return &respond.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("blocked %s on %s", threat.Source, list),
		Output: map[string]any{
			"list":     list,
			"source":   threat.Source,
			"duration": duration.String(),
		},
	}, nil
}

// RevokeTokensHandler deletes active session keys for the user named in
// the execution context, cutting off any credentials the attacker holds.
type RevokeTokensHandler struct {
	store RedisStore
}

// NewRevokeTokensHandler creates a revoke_tokens handler over the given store.
func NewRevokeTokensHandler(store RedisStore) *RevokeTokensHandler {
	return &RevokeTokensHandler{store: store}
}

func (h *RevokeTokensHandler) Type() string { return "revoke_tokens" }

func (h *RevokeTokensHandler) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*respond.HandlerResult, error) {
	userID, _ := ectx["user_id"].(string)
	if userID == "" {
		return &respond.HandlerResult{Success: false, Message: "no user_id in context"}, nil
	}

	pattern := fmt.Sprintf("session:%s:*", userID)
	keys, err := h.store.Keys(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	if len(keys) > 0 {
		if err := h.store.Del(ctx, keys...); err != nil {
			return nil, fmt.Errorf("session revocation failed: %w", err)
		}
	}

	slog.Info("revoked user sessions",
		"user_id", userID,
		"revoked", len(keys),
		"threat_id", threat.ID)

	return &respond.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("revoked %d sessions for %s", len(keys), userID),
		Output: map[string]any{
			"user_id": userID,
			"revoked": len(keys),
		},
	}, nil
}
