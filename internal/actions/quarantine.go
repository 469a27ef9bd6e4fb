package actions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shield-respond/internal/respond"
	"shield-respond/internal/schema"
)

// QuarantineFileHandler moves the file named in the execution context into
// a quarantine directory where it can no longer execute or be served.
type QuarantineFileHandler struct {
	dir string
}

// NewQuarantineFileHandler creates a quarantine_file handler using the
// given quarantine directory.
func NewQuarantineFileHandler(dir string) *QuarantineFileHandler {
	return &QuarantineFileHandler{dir: dir}
}

func (h *QuarantineFileHandler) Type() string { return "quarantine_file" }

func (h *QuarantineFileHandler) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*respond.HandlerResult, error) {
	src, _ := ectx["file_path"].(string)
	if src == "" {
		return &respond.HandlerResult{Success: false, Message: "no file_path in context"}, nil
	}

	dir := paramString(params, "dir", h.dir)
	if dir == "" {
		return &respond.HandlerResult{Success: false, Message: "no quarantine directory configured"}, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create quarantine dir: %w", err)
	}

	// Timestamp prefix keeps repeated quarantines of the same name apart.
	dst := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(src)))
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("failed to quarantine file: %w", err)
	}
	if err := os.Chmod(dst, 0o400); err != nil {
		slog.Warn("failed to restrict quarantined file mode", "path", dst, "error", err)
	}

	slog.Info("quarantined file",
		"source", src,
		"quarantined_as", dst,
		"threat_id", threat.ID)

	return &respond.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("quarantined %s", filepath.Base(src)),
		Output: map[string]any{
			"original_path":    src,
			"quarantined_path": dst,
		},
	}, nil
}
