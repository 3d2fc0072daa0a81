// Package notify delivers user-facing notifications about the tracking session.
package notify

import (
	"context"
	"log/slog"
)

// Notifier shows a local notification. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.log.InfoContext(ctx, "Notification", "title", title, "body", body)

	return nil
}
