// Package engine drives the paste and drop interception flow. It wraps
// the native handlers of registered editor instances, classifies every
// incoming event, runs the optional confirmation gate, uploads image
// payloads concurrently while reconciling placeholder markers, and
// replays whatever it could not place through the original handlers.
//
// The engine never consumes an event it cannot finish: ineligible
// events reach the native handler untouched, and failed files come back
// to it as a residual event carrying exactly those files.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"pasteup/internal/classify"
	"pasteup/internal/config"
	"pasteup/internal/confirm"
	"pasteup/internal/editor"
	"pasteup/internal/event"
	"pasteup/internal/history"
	"pasteup/internal/intercept"
	"pasteup/internal/logging"
	"pasteup/internal/notify"
	"pasteup/internal/placeholder"
	"pasteup/pkg/uploader"
)

// Notice shown when an image-shaped event arrives with no uploader
// configured. The event itself passes through untouched.
const (
	noticeSummary = "Image upload"
	noticeBody    = "No uploader is configured. Choose one in the pasteup settings to upload pasted images."
)

// genericFailureNote replaces the provider message when an upload dies
// before the remote service could reject it.
const genericFailureNote = "unexpected error, see daemon log"

// Options wires an Engine. Config is the live configuration shared with
// the daemon; Prompter and Persist feed the confirmation gate; a nil
// Uploader starts the engine in pass-through mode.
type Options struct {
	Config   *config.Config
	Prompter confirm.Prompter
	Persist  func(*config.Config) error
	Uploader uploader.Uploader
	Journal  *history.Store
	Notifier notify.Notifier
	Log      *slog.Logger
}

// Engine orchestrates interception, classification, confirmation,
// uploads, and replay for every registered editor instance.
type Engine struct {
	cfg      *config.Config
	registry *intercept.Registry
	gate     *confirm.Gate
	tokens   placeholder.TokenSource
	journal  *history.Store
	notifier notify.Notifier
	log      *slog.Logger

	mu sync.RWMutex
	up uploader.Uploader
}

// New creates an engine from opts.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Log
	if log == nil {
		log = logging.Default().Logger
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Muted{}
	}

	return &Engine{
		cfg:      cfg,
		registry: intercept.NewRegistry(),
		gate:     confirm.NewGate(cfg, opts.Prompter, opts.Persist, log),
		journal:  opts.Journal,
		notifier: notifier,
		log:      log,
		up:       opts.Uploader,
	}
}

// NewInstanceID mints an identity token for a host-materialized editor
// instance.
func (e *Engine) NewInstanceID() string {
	return "editor-" + e.tokens.Next()
}

// RegisterEditor wraps inst's paste and drop handlers. Registering an
// already-registered instance keeps the first backup untouched.
func (e *Engine) RegisterEditor(inst *editor.Instance) {
	e.registry.Install(inst, editor.Handlers{
		Paste: e.wrappedPaste,
		Drop:  e.wrappedDrop,
	})
	e.log.Debug("editor registered", "instance", inst.ID)
}

// UnregisterEditor restores inst's native handlers. It reports whether
// the instance was registered.
func (e *Engine) UnregisterEditor(inst *editor.Instance) bool {
	ok := e.registry.Uninstall(inst.ID)
	if ok {
		e.log.Debug("editor unregistered", "instance", inst.ID)
	}
	return ok
}

// RegisteredEditors returns the IDs of every intercepted instance.
func (e *Engine) RegisteredEditors() []string {
	return e.registry.IDs()
}

// Close restores the native handlers of every registered instance.
func (e *Engine) Close() {
	e.registry.UninstallAll()
}

// SetUploader swaps the active provider. A nil uploader turns every
// later event into a pass-through with the misconfiguration notice.
func (e *Engine) SetUploader(up uploader.Uploader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.up = up
}

// Uploader returns the active provider, nil when uploads are disabled.
func (e *Engine) Uploader() uploader.Uploader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.up
}

// wrappedDrop is the handler installed over every native drop handler.
func (e *Engine) wrappedDrop(inst *editor.Instance, ev event.Event) {
	up := e.Uploader()

	switch classify.Drop(ev, up != nil) {
	case classify.VerdictIneligible:
		e.replay(inst, ev)
		return
	case classify.VerdictNoUploader:
		e.noUploaderNotice()
		e.replay(inst, ev)
		return
	}

	switch e.gate.Decide(context.Background(), confirmRequest(ev, up)) {
	case confirm.Unknown:
		return
	case confirm.Declined:
		e.replay(inst, ev)
		return
	}

	e.uploadDrop(inst, ev, up)
}

// wrappedPaste is the handler installed over every native paste handler.
func (e *Engine) wrappedPaste(inst *editor.Instance, ev event.Event) {
	up := e.Uploader()

	switch classify.Paste(ev, up != nil) {
	case classify.VerdictIneligible:
		e.replay(inst, ev)
		return
	case classify.VerdictNoUploader:
		e.noUploaderNotice()
		e.replay(inst, ev)
		return
	}

	switch e.gate.Decide(context.Background(), confirmRequest(ev, up)) {
	case confirm.Unknown:
		return
	case confirm.Declined:
		e.replay(inst, ev)
		return
	}

	e.uploadPaste(inst, ev, up)
}

// uploadDrop runs the multi-file drop flow: separator, one placeholder
// per file in document order, concurrent uploads joined before return,
// and a single residual replay when any file failed.
func (e *Engine) uploadDrop(inst *editor.Instance, ev event.Event, up uploader.Uploader) {
	lock, ok := e.registry.DocLock(inst.ID)
	if !ok {
		return
	}
	rec := placeholder.NewReconciler(inst.Doc, lock)

	// Separates plugin-authored lines from anything the native handler
	// may append later.
	rec.InsertSeparator()

	files := ev.Transfer.Files
	outcomes := make([]outcome, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		// Placeholders go in before the uploads spawn so markers sit in
		// document order regardless of completion order.
		token := e.tokens.Next()
		rec.Insert(token)

		wg.Add(1)
		go func(i int, f uploader.File, token string) {
			defer wg.Done()
			outcomes[i] = e.uploadOne(ev, rec, up, f, token)
		}(i, f, token)
	}
	wg.Wait()

	var failed []uploader.File
	for _, out := range outcomes {
		if out.err != nil {
			failed = append(failed, out.file)
		}
	}
	if len(failed) == 0 {
		return
	}
	e.replay(inst, event.Residual(ev, failed))
}

// uploadPaste handles the first attached file of a paste event. Later
// clipboard files are ignored.
func (e *Engine) uploadPaste(inst *editor.Instance, ev event.Event, up uploader.Uploader) {
	lock, ok := e.registry.DocLock(inst.ID)
	if !ok {
		return
	}
	rec := placeholder.NewReconciler(inst.Doc, lock)

	f := ev.Transfer.Files[0]
	token := e.tokens.Next()
	rec.Insert(token)

	out := e.uploadOne(ev, rec, up, f, token)
	if out.err == nil {
		return
	}
	e.replay(inst, event.Residual(ev, []uploader.File{f}))
}

// outcome is the terminal state of one file's upload.
type outcome struct {
	file uploader.File
	url  string
	err  error
}

// uploadOne uploads a single file and resolves its marker. Provider
// rejections surface the provider's own message; anything else gets the
// generic annotation and a log line.
func (e *Engine) uploadOne(ev event.Event, rec *placeholder.Reconciler, up uploader.Uploader, f uploader.File, token string) outcome {
	started := time.Now()
	url, err := up.Upload(context.Background(), f)
	finished := time.Now()

	switch {
	case err == nil:
		rec.ResolveSuccess(token, url)
	default:
		if apiErr, ok := uploader.IsAPIError(err); ok {
			rec.ResolveFailure(token, apiErr.Message)
			e.log.Debug("provider rejected upload",
				"event_id", ev.ID,
				"file", f.Name,
				"provider", up.Name(),
				"status", apiErr.StatusCode,
				"message", apiErr.Message)
		} else {
			rec.ResolveFailure(token, genericFailureNote)
			e.log.Error("upload failed",
				"event_id", ev.ID,
				"file", f.Name,
				"provider", up.Name(),
				"error", err)
		}
	}

	e.record(ev, up, f, url, err, started, finished)
	return outcome{file: f, url: url, err: err}
}

// record writes one attempt to the journal. Journal trouble never
// touches the upload flow.
func (e *Engine) record(ev event.Event, up uploader.Uploader, f uploader.File, url string, uploadErr error, started, finished time.Time) {
	if e.journal == nil {
		return
	}

	sum := sha256.Sum256(f.Data)
	rec := &history.Record{
		EventID:     ev.ID,
		Kind:        string(ev.Kind),
		FileName:    f.Name,
		ContentType: f.ContentType,
		SizeBytes:   f.Size(),
		SHA256:      hex.EncodeToString(sum[:]),
		Provider:    up.Name(),
		URL:         url,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if uploadErr != nil {
		rec.Error = uploadErr.Error()
	}

	if _, err := e.journal.Record(rec); err != nil {
		e.log.Warn("history record failed",
			"event_id", ev.ID,
			"file", f.Name,
			"error", err)
	}
}

// replay hands ev to the instance's original handler for its kind.
func (e *Engine) replay(inst *editor.Instance, ev event.Event) {
	originals, ok := e.registry.Originals(inst.ID)
	if !ok {
		return
	}

	switch ev.Kind {
	case event.KindPaste:
		if originals.Paste != nil {
			originals.Paste(inst, ev)
		}
	case event.KindDrop:
		if originals.Drop != nil {
			originals.Drop(inst, ev)
		}
	}
}

// noUploaderNotice shows the transient misconfiguration notice when
// notices are enabled.
func (e *Engine) noUploaderNotice() {
	settings := e.cfg.NotifySettings()
	if !settings.Enabled {
		return
	}

	timeout := time.Duration(settings.TimeoutMS) * time.Millisecond
	if err := e.notifier.Notify(noticeSummary, noticeBody, timeout); err != nil {
		e.log.Warn("notice delivery failed", "error", err)
	}
}

// confirmRequest describes ev for the confirmation prompt. Paste events
// name only the file the flow would handle.
func confirmRequest(ev event.Event, up uploader.Uploader) confirm.Request {
	files := ev.Transfer.Files
	if ev.Kind == event.KindPaste && len(files) > 1 {
		files = files[:1]
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	return confirm.Request{
		EventID:   ev.ID,
		Kind:      ev.Kind,
		FileNames: names,
		Provider:  up.DisplayName(),
	}
}
