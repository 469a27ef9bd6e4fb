package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

// threatPayload is the JSON body delivered by the HTTP-based handlers.
type threatPayload struct {
	ThreatID   string            `json:"threat_id"`
	ThreatType schema.ThreatType `json:"threat_type"`
	Severity   schema.Severity   `json:"severity"`
	Source     string            `json:"source"`
	DetectedAt time.Time         `json:"detected_at"`
	Channel    string            `json:"channel,omitempty"`
	Priority   string            `json:"priority,omitempty"`
}

// WebhookHandler POSTs the threat as JSON to a configured endpoint. The
// target URL comes from the action params, falling back to the handler
// default.
type WebhookHandler struct {
	actionType string
	defaultURL string
	headers    map[string]string
	client     *http.Client
}

// NewWebhookHandler creates a webhook handler under the given action type.
func NewWebhookHandler(actionType, defaultURL string, headers map[string]string) *WebhookHandler {
	return &WebhookHandler{
		actionType: actionType,
		defaultURL: defaultURL,
		headers:    headers,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

func (h *WebhookHandler) Type() string { return h.actionType }

func (h *WebhookHandler) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*respond.HandlerResult, error) {
	url := paramString(params, "url", h.defaultURL)
	if url == "" {
		return &respond.HandlerResult{Success: false, Message: "no webhook url configured"}, nil
	}

	payload := threatPayload{
		ThreatID:   threat.ID,
		ThreatType: threat.Type,
		Severity:   threat.Severity,
		Source:     threat.Source,
		DetectedAt: threat.DetectedAt,
		Channel:    paramString(params, "channel", ""),
		Priority:   paramString(params, "priority", ""),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &respond.HandlerResult{
			Success: false,
			Message: fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, string(respBody)),
		}, nil
	}

	return &respond.HandlerResult{
		Success: true,
		Message: "delivered",
		Output: map[string]any{
			"url":         url,
			"status_code": resp.StatusCode,
		},
	}, nil
}

// NewAlertHandler creates the "alert" handler: a webhook delivery to the
// alerting gateway, carrying channel and priority from the action params.
func NewAlertHandler(gatewayURL string) *WebhookHandler {
	return NewWebhookHandler("alert", gatewayURL, nil)
}

// NewNotifyHandler creates the "notify" handler for informational
// notifications.
func NewNotifyHandler(gatewayURL string) *WebhookHandler {
	return NewWebhookHandler("notify", gatewayURL, nil)
}
