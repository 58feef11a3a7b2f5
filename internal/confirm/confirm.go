// Package confirm implements the optional confirmation gate in front of
// the upload flow: at most one prompt per eligible event, with an
// approve-and-remember answer that turns the gate off for the rest of
// the session.
package confirm

import (
	"context"
	"log/slog"

	"pasteup/internal/config"
	"pasteup/internal/event"
	"pasteup/internal/logging"
)

// Decision is the user's answer to an upload confirmation prompt.
type Decision int

const (
	// Unknown means the prompt was dismissed or failed. The event is
	// abandoned: no document mutation, no upload, no replay.
	Unknown Decision = iota

	// Declined means the user rejected upload handling. The caller
	// replays the original event through the native handler.
	Declined

	// Approved means the upload flow proceeds.
	Approved
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Unknown:
		return "unknown"
	case Declined:
		return "declined"
	case Approved:
		return "approved"
	default:
		return "invalid"
	}
}

// Response carries the decision and the "don't ask again" choice.
type Response struct {
	Decision Decision

	// Remember is honored only alongside Approved: the confirmation
	// flag flips off for the session and is persisted best-effort.
	Remember bool
}

// Request describes the event awaiting confirmation.
type Request struct {
	EventID   string
	Kind      event.Kind
	FileNames []string
	Provider  string
}

// Prompter obtains one decision from the user. Implementations should
// honor ctx cancellation where their input source allows it.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Response, error)
}

// Gate applies the confirm_before_upload flag. It prompts at most once
// per eligible event and is bypassed entirely while the flag is off.
type Gate struct {
	cfg      *config.Config
	prompter Prompter
	persist  func(*config.Config) error
	log      *slog.Logger
}

// NewGate creates a gate over cfg. persist is invoked after a remembered
// approval to write the flipped flag back to disk; it may be nil when
// the caller has nowhere to persist to. A nil prompter makes every
// prompted event abandon.
func NewGate(cfg *config.Config, prompter Prompter, persist func(*config.Config) error, log *slog.Logger) *Gate {
	if log == nil {
		log = logging.Default().Logger
	}
	return &Gate{cfg: cfg, prompter: prompter, persist: persist, log: log}
}

// Decide returns the decision for one eligible event. A prompt error or
// a nil prompter maps to Unknown; a persistence failure after a
// remembered approval is logged and swallowed.
func (g *Gate) Decide(ctx context.Context, req Request) Decision {
	if !g.cfg.ConfirmBeforeUpload() {
		return Approved
	}

	if g.prompter == nil {
		return Unknown
	}

	resp, err := g.prompter.Prompt(ctx, req)
	if err != nil {
		g.log.Warn("confirmation prompt failed",
			"event_id", req.EventID,
			"error", err)
		return Unknown
	}

	if resp.Decision == Approved && resp.Remember {
		g.cfg.SetConfirmBeforeUpload(false)
		if g.persist != nil {
			if err := g.persist(g.cfg); err != nil {
				g.log.Warn("could not persist confirmation preference",
					"event_id", req.EventID,
					"error", err)
			}
		}
	}

	return resp.Decision
}
