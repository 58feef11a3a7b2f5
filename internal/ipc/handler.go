package ipc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pasteup/internal/classify"
	"pasteup/internal/config"
	"pasteup/internal/editor"
	"pasteup/internal/engine"
	"pasteup/internal/event"
	"pasteup/internal/history"
	"pasteup/internal/logging"
	"pasteup/internal/providers"
	"pasteup/internal/security"
	"pasteup/pkg/uploader"
)

// DaemonHandler answers pasteup IPC requests against a live engine.
type DaemonHandler struct {
	mu        sync.RWMutex
	version   string
	startedAt time.Time

	cfg     *config.Config
	engine  *engine.Engine
	journal *history.Store
	persist func(*config.Config) error
	reload  func() error

	broadcaster func(*Broadcast)
	log         *slog.Logger
}

// DaemonHandlerConfig wires the handler to the daemon's components.
type DaemonHandlerConfig struct {
	Version string
	Config  *config.Config
	Engine  *engine.Engine
	Journal *history.Store

	// Persist writes cfg back to disk after a settings change. Nil
	// means changes live only for the daemon's lifetime.
	Persist func(*config.Config) error

	// Reload re-reads the configuration from disk.
	Reload func() error

	Log *slog.Logger
}

// NewDaemonHandler creates a handler over the daemon's engine.
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	log := cfg.Log
	if log == nil {
		log = logging.Default().Logger
	}
	return &DaemonHandler{
		version:   cfg.Version,
		startedAt: time.Now(),
		cfg:       cfg.Config,
		engine:    cfg.Engine,
		journal:   cfg.Journal,
		persist:   cfg.Persist,
		reload:    cfg.Reload,
		log:       log,
	}
}

// SetBroadcaster sets the function used to push events to subscribers.
func (h *DaemonHandler) SetBroadcaster(broadcaster func(*Broadcast)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcaster = broadcaster
}

// Shutdown announces daemon shutdown to subscribers.
func (h *DaemonHandler) Shutdown() {
	h.broadcast(&Broadcast{
		Type:      EventDaemonShutdown,
		Timestamp: time.Now(),
	})
}

// HandleMessage implements Handler.
func (h *DaemonHandler) HandleMessage(ctx context.Context, conn *Conn, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgStatus:
		return h.handleStatus(ctx, msg)
	case MsgGetSettings:
		return h.handleGetSettings(ctx, msg)
	case MsgSetSettings:
		return h.handleSetSettings(ctx, msg)
	case MsgReloadSettings:
		return h.handleReloadSettings(ctx, msg)
	case MsgEditorEvent:
		return h.handleEditorEvent(ctx, msg)
	case MsgHistory:
		return h.handleHistory(ctx, msg)
	case MsgUpload:
		return h.handleUpload(ctx, msg)
	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest,
			fmt.Sprintf("unknown message type %#04x", uint16(msg.Header.Type))), nil
	}
}

func (h *DaemonHandler) handleStatus(ctx context.Context, msg *Message) (*Message, error) {
	var req StatusRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid status request"), nil
		}
	}

	resp := &StatusResponse{
		Version:             h.version,
		StartedAt:           h.startedAt,
		Uptime:              time.Since(h.startedAt),
		ConfirmBeforeUpload: h.cfg.ConfirmBeforeUpload(),
		Editors:             h.engine.RegisteredEditors(),
	}
	if up := h.engine.Uploader(); up != nil {
		resp.Provider = up.Name()
		resp.ProviderReady = true
	}
	if req.IncludeStats && h.journal != nil {
		if stats, err := h.journal.Stats(); err == nil {
			resp.History = &HistoryStats{
				Total:     stats.Total,
				Succeeded: stats.Succeeded,
				Failed:    stats.Failed,
				Bytes:     stats.Bytes,
			}
		}
	}

	return NewResponse(MsgStatusResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleGetSettings(ctx context.Context, msg *Message) (*Message, error) {
	var req GetSettingsRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid settings request"), nil
		}
	}

	settings := h.settingsSnapshot()
	if len(req.Keys) > 0 {
		filtered := make(map[string]any, len(req.Keys))
		for _, k := range req.Keys {
			if v, ok := settings[k]; ok {
				filtered[k] = v
			}
		}
		settings = filtered
	}

	return NewResponse(MsgGetSettingsResp, msg.Header.RequestID, &GetSettingsResponse{Settings: settings})
}

// settingsSnapshot flattens the client-visible settings. The credential
// never leaves the daemon, sealed or not.
func (h *DaemonHandler) settingsSnapshot() map[string]any {
	up := h.cfg.UploaderSettings()
	notify := h.cfg.NotifySettings()
	hist := h.cfg.HistorySettings()

	credential := ""
	if up.Credential != "" {
		credential = "(set)"
	}

	return map[string]any{
		"strategy":              up.Strategy,
		"client_id":             up.ClientID,
		"credential":            credential,
		"spec_path":             up.SpecPath,
		"timeout_sec":           up.TimeoutSec,
		"max_upload_mb":         up.MaxUploadMB,
		"confirm_before_upload": h.cfg.ConfirmBeforeUpload(),
		"history_enabled":       hist.Enabled,
		"notify_enabled":        notify.Enabled,
	}
}

func (h *DaemonHandler) handleSetSettings(ctx context.Context, msg *Message) (*Message, error) {
	var req SetSettingsRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid settings request"), nil
	}
	if len(req.Settings) == 0 {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no settings given"), nil
	}

	if err := h.applySettings(req.Settings); err != nil {
		return NewResponse(MsgSetSettingsResp, msg.Header.RequestID, &SetSettingsResponse{Error: err.Error()})
	}

	if h.persist != nil {
		if err := h.persist(h.cfg); err != nil {
			h.log.Warn("could not persist settings", "error", err)
		}
	}

	h.refreshUploader()

	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h.broadcast(&Broadcast{
		Type:      EventSettingsChanged,
		Timestamp: time.Now(),
		Data:      map[string]any{"keys": keys},
	})

	return NewResponse(MsgSetSettingsResp, msg.Header.RequestID, &SetSettingsResponse{Success: true})
}

// applySettings mutates the shared config from the wire map. Unknown
// keys fail the whole request so a typo cannot silently no-op.
func (h *DaemonHandler) applySettings(settings map[string]any) error {
	up := h.cfg.UploaderSettings()
	upChanged := false

	for key, raw := range settings {
		switch key {
		case "strategy":
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("strategy must be a string")
			}
			up.Strategy = s
			upChanged = true

		case "client_id":
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("client_id must be a string")
			}
			up.ClientID = s
			upChanged = true

		case "credential":
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("credential must be a string")
			}
			sealed, err := h.sealCredential(s)
			if err != nil {
				return err
			}
			up.Credential = sealed
			up.CredentialSealed = sealed != ""
			upChanged = true

		case "spec_path":
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("spec_path must be a string")
			}
			up.SpecPath = s
			upChanged = true

		case "confirm_before_upload":
			b, ok := raw.(bool)
			if !ok {
				return fmt.Errorf("confirm_before_upload must be a boolean")
			}
			h.cfg.SetConfirmBeforeUpload(b)

		default:
			return fmt.Errorf("unknown setting %q", key)
		}
	}

	if upChanged {
		h.cfg.SetUploaderSettings(up)
	}
	return nil
}

// sealCredential seals a plaintext credential with the machine key
// before it touches the config file.
func (h *DaemonHandler) sealCredential(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	key, err := security.LoadMachineKey(config.MachineKeyPath())
	if err != nil {
		return "", fmt.Errorf("load machine key: %w", err)
	}
	return security.Seal(key, plaintext)
}

// refreshUploader rebuilds the provider from the current settings and
// swaps it into the engine.
func (h *DaemonHandler) refreshUploader() {
	up, err := providers.FromConfig(h.cfg)
	if err != nil {
		if !errors.Is(err, uploader.ErrNotConfigured) {
			h.log.Warn("uploader unavailable after settings change", "error", err)
		}
		h.engine.SetUploader(nil)
		return
	}
	h.engine.SetUploader(up)
}

func (h *DaemonHandler) handleReloadSettings(ctx context.Context, msg *Message) (*Message, error) {
	if h.reload == nil {
		return NewResponse(MsgReloadSettingsResp, msg.Header.RequestID,
			&ReloadSettingsResponse{Error: "reload not supported"})
	}

	if err := h.reload(); err != nil {
		return NewResponse(MsgReloadSettingsResp, msg.Header.RequestID,
			&ReloadSettingsResponse{Error: err.Error()})
	}

	h.refreshUploader()
	h.broadcast(&Broadcast{
		Type:      EventSettingsChanged,
		Timestamp: time.Now(),
		Data:      map[string]any{"reloaded": true},
	})

	return NewResponse(MsgReloadSettingsResp, msg.Header.RequestID, &ReloadSettingsResponse{Success: true})
}

// replayCapture stands in for the client's native handlers during one
// IPC-hosted event. Whatever the engine replays is reported back in
// the response instead of being executed daemon-side.
type replayCapture struct {
	mu sync.Mutex
	ev *event.Event
}

func (rc *replayCapture) handlers() editor.Handlers {
	record := func(_ *editor.Instance, ev event.Event) {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		rc.ev = &ev
	}
	return editor.Handlers{Paste: record, Drop: record}
}

func (rc *replayCapture) captured() *event.Event {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.ev
}

func (h *DaemonHandler) handleEditorEvent(ctx context.Context, msg *Message) (*Message, error) {
	var req EditorEventRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid editor event"), nil
	}

	var kind event.Kind
	switch req.Kind {
	case "paste":
		kind = event.KindPaste
	case "drop":
		kind = event.KindDrop
	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest,
			fmt.Sprintf("unknown event kind %q", req.Kind)), nil
	}

	buf := editor.NewBuffer(req.DocText)
	buf.SetCursor(editor.Position{Line: req.Cursor.Line, Ch: req.Cursor.Ch})
	if req.SelAnchor != nil && req.SelHead != nil {
		buf.SetSelection(
			editor.Position{Line: req.SelAnchor.Line, Ch: req.SelAnchor.Ch},
			editor.Position{Line: req.SelHead.Line, Ch: req.SelHead.Ch},
		)
	}

	files := make([]uploader.File, len(req.Files))
	for i, f := range req.Files {
		files[i] = uploader.File{Name: f.Name, ContentType: f.ContentType, Data: f.Data}
	}

	id := req.EventID
	if id == "" {
		id = uuid.NewString()
	}
	ev := event.Event{
		ID:   id,
		Kind: kind,
		Pos:  event.Position{X: req.X, Y: req.Y},
		Transfer: event.Transfer{
			Types: req.TransferTypes,
			Files: files,
		},
	}

	h.announceUploads(ev)

	rc := &replayCapture{}
	inst := editor.NewInstance(h.engine.NewInstanceID(), buf)
	inst.SetHandlers(rc.handlers())
	h.engine.RegisterEditor(inst)
	defer h.engine.UnregisterEditor(inst)

	switch kind {
	case event.KindPaste:
		inst.DispatchPaste(ev)
	case event.KindDrop:
		inst.DispatchDrop(ev)
	}

	cursor := buf.Cursor()
	resp := &EditorEventResponse{
		EventID: ev.ID,
		DocText: buf.Value(),
		Cursor:  CursorPos{Line: cursor.Line, Ch: cursor.Ch},
	}

	switch captured := rc.captured(); {
	case captured == nil:
		// Full success or a silent abandon; only a document change
		// distinguishes them.
		resp.Handled = resp.DocText != req.DocText
	case captured.ID == ev.ID:
		// The engine deferred: the client runs its native handler with
		// the untouched original event.
		resp.RunNativeHandler = true
	default:
		resp.Handled = true
		resp.RunNativeHandler = true
		for _, f := range captured.Transfer.Files {
			resp.ResidualFiles = append(resp.ResidualFiles, f.Name)
		}
	}

	resp.Outcomes = h.collectOutcomes(ev.ID)
	return NewResponse(MsgEditorEventResp, msg.Header.RequestID, resp)
}

// announceUploads broadcasts the start of an eligible event's uploads.
// Ineligible events stay silent, matching the engine.
func (h *DaemonHandler) announceUploads(ev event.Event) {
	ready := h.engine.Uploader() != nil

	var verdict classify.Verdict
	switch ev.Kind {
	case event.KindDrop:
		verdict = classify.Drop(ev, ready)
	case event.KindPaste:
		verdict = classify.Paste(ev, ready)
	}
	if verdict != classify.VerdictEligible {
		return
	}

	names := make([]string, len(ev.Transfer.Files))
	for i, f := range ev.Transfer.Files {
		names[i] = f.Name
	}
	h.broadcast(&Broadcast{
		Type:      EventUploadStarted,
		Timestamp: time.Now(),
		EventID:   ev.ID,
		Data:      map[string]any{"kind": string(ev.Kind), "files": names},
	})
}

// collectOutcomes reads the journal rows written for the event,
// mirrors them as wire outcomes, and broadcasts one terminal event per
// file. Without a journal the response carries only the rewritten
// document and residual files.
func (h *DaemonHandler) collectOutcomes(eventID string) []FileOutcome {
	if h.journal == nil {
		return nil
	}

	records, err := h.journal.ByEvent(eventID)
	if err != nil {
		h.log.Warn("history lookup failed", "event_id", eventID, "error", err)
		return nil
	}

	outcomes := make([]FileOutcome, 0, len(records))
	for _, rec := range records {
		outcomes = append(outcomes, FileOutcome{Name: rec.FileName, URL: rec.URL, Error: rec.Error})

		typ := EventUploadSucceeded
		data := map[string]any{"file": rec.FileName, "url": rec.URL}
		if !rec.Succeeded() {
			typ = EventUploadFailed
			data = map[string]any{"file": rec.FileName, "error": rec.Error}
		}
		h.broadcast(&Broadcast{Type: typ, Timestamp: time.Now(), EventID: eventID, Data: data})
	}
	return outcomes
}

func (h *DaemonHandler) handleHistory(ctx context.Context, msg *Message) (*Message, error) {
	if h.journal == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrUnavailable, "history is disabled"), nil
	}

	var req HistoryRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid history request"), nil
		}
	}

	var (
		records []history.Record
		err     error
	)
	if req.EventID != "" {
		records, err = h.journal.ByEvent(req.EventID)
	} else {
		records, err = h.journal.List(req.Limit)
	}
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternal, "history query failed"), nil
	}

	resp := &HistoryResponse{Records: make([]UploadRecord, len(records))}
	for i, rec := range records {
		resp.Records[i] = UploadRecord{
			ID:          rec.ID,
			EventID:     rec.EventID,
			Kind:        rec.Kind,
			FileName:    rec.FileName,
			ContentType: rec.ContentType,
			SizeBytes:   rec.SizeBytes,
			Provider:    rec.Provider,
			URL:         rec.URL,
			Error:       rec.Error,
			StartedAt:   rec.StartedAt,
			FinishedAt:  rec.FinishedAt,
		}
	}
	if stats, err := h.journal.Stats(); err == nil {
		resp.Stats = &HistoryStats{
			Total:     stats.Total,
			Succeeded: stats.Succeeded,
			Failed:    stats.Failed,
			Bytes:     stats.Bytes,
		}
	}

	return NewResponse(MsgHistoryResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleUpload(ctx context.Context, msg *Message) (*Message, error) {
	var req UploadRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid upload request"), nil
	}
	if len(req.Files) == 0 {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no files given"), nil
	}

	up := h.engine.Uploader()
	if up == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrNotConfigured, "no uploader is configured"), nil
	}

	eventID := "direct-" + uuid.NewString()
	names := make([]string, len(req.Files))
	for i, f := range req.Files {
		names[i] = f.Name
	}
	h.broadcast(&Broadcast{
		Type:      EventUploadStarted,
		Timestamp: time.Now(),
		EventID:   eventID,
		Data:      map[string]any{"kind": "direct", "files": names},
	})

	outcomes := make([]FileOutcome, len(req.Files))
	for i, fp := range req.Files {
		f := uploader.File{Name: fp.Name, ContentType: fp.ContentType, Data: fp.Data}

		started := time.Now()
		url, err := up.Upload(ctx, f)
		finished := time.Now()

		h.recordDirect(eventID, up.Name(), f, url, err, started, finished)

		outcome := FileOutcome{Name: f.Name, URL: url}
		typ := EventUploadSucceeded
		data := map[string]any{"file": f.Name, "url": url}
		if err != nil {
			outcome = FileOutcome{Name: f.Name, Error: err.Error()}
			typ = EventUploadFailed
			data = map[string]any{"file": f.Name, "error": err.Error()}
		}
		outcomes[i] = outcome
		h.broadcast(&Broadcast{Type: typ, Timestamp: time.Now(), EventID: eventID, Data: data})
	}

	return NewResponse(MsgUploadResp, msg.Header.RequestID, &UploadResponse{Outcomes: outcomes})
}

// recordDirect journals one direct upload the way the engine journals
// event uploads.
func (h *DaemonHandler) recordDirect(eventID, provider string, f uploader.File, url string, uploadErr error, started, finished time.Time) {
	if h.journal == nil {
		return
	}

	sum := sha256.Sum256(f.Data)
	rec := &history.Record{
		EventID:     eventID,
		Kind:        "direct",
		FileName:    f.Name,
		ContentType: f.ContentType,
		SizeBytes:   f.Size(),
		SHA256:      hex.EncodeToString(sum[:]),
		Provider:    provider,
		URL:         url,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if uploadErr != nil {
		rec.Error = uploadErr.Error()
	}

	if _, err := h.journal.Record(rec); err != nil {
		h.log.Warn("history record failed", "event_id", eventID, "file", f.Name, "error", err)
	}
}

func (h *DaemonHandler) broadcast(b *Broadcast) {
	h.mu.RLock()
	broadcaster := h.broadcaster
	h.mu.RUnlock()

	if broadcaster != nil {
		broadcaster(b)
	}
}
