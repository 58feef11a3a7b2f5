//go:build integration

package integration

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pasteup/internal/config"
	"pasteup/internal/engine"
	"pasteup/internal/history"
	"pasteup/internal/ipc"
	"pasteup/pkg/uploader"
)

// env is a complete daemon stack wired in-process: live config, upload
// journal, interception engine, and the IPC server on a temp socket.
type env struct {
	t       *testing.T
	cfgPath string
	cfg     *config.Config
	journal *history.Store
	engine  *engine.Engine
	handler *ipc.DaemonHandler
	server  *ipc.Server
	uploads *stubUploader
	client  *ipc.Client
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("PASTEUP_DATA_DIR", dir)

	cfgPath := filepath.Join(dir, "config.toml")
	cfg, _, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	cfg.SetConfirmBeforeUpload(false)

	journal, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	persist := func(c *config.Config) error { return config.Save(c, cfgPath) }
	uploads := &stubUploader{}

	eng := engine.New(engine.Options{
		Config:   cfg,
		Persist:  persist,
		Uploader: uploads,
		Journal:  journal,
		Log:      log,
	})
	t.Cleanup(eng.Close)

	handler := ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
		Version: "test",
		Config:  cfg,
		Engine:  eng,
		Journal: journal,
		Persist: persist,
		Log:     log,
	})

	serverCfg := ipc.DefaultServerConfig(dir)
	serverCfg.Version = "test"

	server := ipc.NewServer(serverCfg, handler, log)
	handler.SetBroadcaster(server.Broadcast)

	if err := server.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	e := &env{
		t:       t,
		cfgPath: cfgPath,
		cfg:     cfg,
		journal: journal,
		engine:  eng,
		handler: handler,
		server:  server,
		uploads: uploads,
	}
	e.client = e.dial("editor-1")
	return e
}

// dial connects a named client to the env's socket.
func (e *env) dial(name string) *ipc.Client {
	e.t.Helper()

	cfg := ipc.DefaultClientConfig()
	cfg.SocketPath = e.server.SocketPath()
	cfg.ClientName = name
	cfg.ClientVersion = "test"

	client := ipc.NewClient(cfg)
	if err := client.Connect(); err != nil {
		e.t.Fatalf("connect %s: %v", name, err)
	}
	e.t.Cleanup(func() { client.Close() })
	return client
}

// watch subscribes a dedicated client and returns its broadcast stream.
func (e *env) watch(types ...ipc.EventType) <-chan *ipc.Broadcast {
	e.t.Helper()

	watcher := e.dial("watcher")
	if err := watcher.Subscribe(types...); err != nil {
		e.t.Fatalf("subscribe: %v", err)
	}
	return watcher.Broadcasts()
}

// nextEvent waits for one broadcast or fails the test.
func nextEvent(t *testing.T, ch <-chan *ipc.Broadcast) *ipc.Broadcast {
	t.Helper()

	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatal("broadcast channel closed")
		}
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a broadcast")
	}
	return nil
}

// pngPayload builds a transfer item backed by a real encoded PNG.
func pngPayload(t *testing.T, name string) ipc.FilePayload {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return ipc.FilePayload{Name: name, ContentType: "image/png", Data: buf.Bytes()}
}

// stubUploader answers uploads locally: a scripted error per file name,
// or a deterministic URL.
type stubUploader struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *stubUploader) Name() string             { return "stub" }
func (s *stubUploader) DisplayName() string      { return "stub host" }
func (s *stubUploader) RequiresCredential() bool { return false }

func (s *stubUploader) Configure(map[string]interface{}) error { return nil }

func (s *stubUploader) Upload(_ context.Context, f uploader.File) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, f.Name)
	err := s.errs[f.Name]
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "https://img.example/" + f.Name, nil
}

func (s *stubUploader) failWith(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[string]error)
	}
	s.errs[name] = err
}

func (s *stubUploader) uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
