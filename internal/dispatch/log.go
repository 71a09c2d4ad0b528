package dispatch

import (
	"context"
	"log/slog"
	"time"
)

const previewLen = 100

// LogDispatcher only records the submission. Meant for local development.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	s := env.Submission
	d.logger.InfoContext(ctx, "contact submission received",
		"id", env.ID.String(),
		"name", s.Name,
		"email", s.Email,
		"subject", s.Subject,
		"message", preview(s.Message),
		"ip", env.Source,
		"received_at", env.ReceivedAt.UTC().Format(time.RFC3339),
	)
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
