package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

// TicketHandler creates an incident ticket record for human follow-up.
// Without a ticketing integration configured it generates and logs the
// ticket locally, which is enough for the execution log to reference.
type TicketHandler struct {
	now func() time.Time
}

// NewTicketHandler creates a ticket handler.
func NewTicketHandler() *TicketHandler {
	return &TicketHandler{now: time.Now}
}

func (h *TicketHandler) Type() string { return "ticket" }

func (h *TicketHandler) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*respond.HandlerResult, error) {
	queue := paramString(params, "queue", "security-incidents")
	priority := paramString(params, "priority", "medium")

	ticketID := fmt.Sprintf("INC-%d", h.now().UnixNano()%1000000)

	slog.Info("created incident ticket",
		"ticket_id", ticketID,
		"queue", queue,
		"priority", priority,
		"threat_id", threat.ID,
		"threat_type", threat.Type)

	return &respond.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("created %s in %s", ticketID, queue),
		Output: map[string]any{
			"ticket_id": ticketID,
			"queue":     queue,
			"priority":  priority,
		},
	}, nil
}
