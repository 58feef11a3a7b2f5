// Package notify delivers transient desktop notices.
//
// Notices are advisory. Every implementation may drop them without
// affecting the flow that raised them, so callers log delivery errors
// and move on.
package notify

import (
	"log/slog"
	"time"

	"pasteup/internal/logging"
)

// Notifier shows one transient notice.
type Notifier interface {
	Notify(summary, body string, timeout time.Duration) error
}

// Muted discards every notice.
type Muted struct{}

// Notify implements Notifier.
func (Muted) Notify(summary, body string, timeout time.Duration) error {
	return nil
}

// LogNotifier writes notices to the structured log instead of the
// desktop. It is the fallback for headless and non-Linux hosts.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = logging.Default().Logger
	}
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(summary, body string, timeout time.Duration) error {
	n.log.Info("notice", "summary", summary, "body", body)
	return nil
}

// New returns the best notifier for this host: the desktop bus when
// one is reachable, the structured log otherwise.
func New(log *slog.Logger) Notifier {
	if log == nil {
		log = logging.Default().Logger
	}

	n, err := newPlatformNotifier()
	if err != nil {
		log.Debug("desktop notifications unavailable", "error", err)
		return NewLogNotifier(log)
	}
	return n
}
