package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()

	cfg := DefaultServerConfig(t.TempDir())
	cfg.Version = "test"

	srv := NewServer(cfg, handler, testLog())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dialTestServer(t *testing.T, srv *Server) *Client {
	t.Helper()

	cfg := DefaultClientConfig()
	cfg.SocketPath = srv.SocketPath()
	cfg.ClientName = "test-client"
	cfg.RequestTimeout = 5 * time.Second

	c := NewClient(cfg)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerHandshakeAndPing(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	assert.NotEmpty(t, c.ClientID())
	assert.True(t, c.IsConnected())
	assert.Equal(t, 1, srv.ConnCount())

	require.NoError(t, c.Ping())
}

func TestServerDispatchesToHandler(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, conn *Conn, msg *Message) (*Message, error) {
		if msg.Header.Type != MsgStatus {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "unexpected type"), nil
		}
		return NewResponse(MsgStatusResp, msg.Header.RequestID, &StatusResponse{Version: "9.9.9"})
	})

	srv := startTestServer(t, handler)
	c := dialTestServer(t, srv)

	status, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", status.Version)
}

func TestServerHandlerErrorBecomesErrorFrame(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, conn *Conn, msg *Message) (*Message, error) {
		return nil, errors.New("boom")
	})

	srv := startTestServer(t, handler)
	c := dialTestServer(t, srv)

	_, err := c.Status()
	var de *DaemonError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInternal, de.Code)
	assert.Equal(t, "boom", de.Message)
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, conn *Conn, msg *Message) (*Message, error) {
		panic("handler exploded")
	})

	srv := startTestServer(t, handler)
	c := dialTestServer(t, srv)

	_, err := c.Status()
	var de *DaemonError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInternal, de.Code)
	assert.Equal(t, "internal error", de.Message)

	// The connection survives the panic.
	require.NoError(t, c.Ping())
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	require.NoError(t, c.Subscribe(EventUploadSucceeded))

	// Not subscribed to this type; it must never arrive.
	srv.Broadcast(&Broadcast{Type: EventSettingsChanged, Timestamp: time.Now()})
	srv.Broadcast(&Broadcast{Type: EventUploadSucceeded, Timestamp: time.Now(), EventID: "ev-1"})

	select {
	case b := <-c.Broadcasts():
		assert.Equal(t, EventUploadSucceeded, b.Type)
		assert.Equal(t, "ev-1", b.EventID)
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestBroadcastAfterUnsubscribe(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	require.NoError(t, c.Subscribe())
	require.NoError(t, c.Unsubscribe())

	srv.Broadcast(&Broadcast{Type: EventUploadSucceeded, Timestamp: time.Now()})

	select {
	case b := <-c.Broadcasts():
		t.Fatalf("received broadcast after unsubscribe: %v", b.Type)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestShutdownRequest(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	// No callback registered yet.
	err := c.Shutdown()
	var de *DaemonError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrUnavailable, de.Code)

	done := make(chan struct{})
	srv.OnShutdown(func() { close(done) })

	require.NoError(t, c.Shutdown())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback never ran")
	}
}

func TestServerRefusesForeignSocketFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pasteupd.sock")
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0600))

	cfg := DefaultServerConfig(dir)
	srv := NewServer(cfg, nil, testLog())

	err := srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a socket")
}

func TestServerRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pasteupd.sock")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	l.SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
	_, err = os.Lstat(path)
	require.NoError(t, err, "stale socket file missing")

	cfg := DefaultServerConfig(dir)
	srv := NewServer(cfg, nil, testLog())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	c := dialTestServer(t, srv)
	require.NoError(t, c.Ping())
}

func TestServerConnectionLimit(t *testing.T) {
	cfg := DefaultServerConfig(t.TempDir())
	cfg.MaxConnections = 1

	srv := NewServer(cfg, nil, testLog())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	first := dialTestServer(t, srv)
	require.NoError(t, first.Ping())

	over := NewClient(ClientConfig{
		SocketPath:     srv.SocketPath(),
		ClientName:     "over-limit",
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 2 * time.Second,
	})
	require.Error(t, over.Connect())
}

func TestClientConnectWithoutDaemon(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.SocketPath = filepath.Join(t.TempDir(), "missing.sock")

	c := NewClient(cfg)
	require.ErrorIs(t, c.Connect(), ErrDaemonNotRunning)
}

func TestStopClosesConnections(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)
	require.NoError(t, c.Ping())

	require.NoError(t, srv.Stop())

	_, err := os.Lstat(srv.SocketPath())
	assert.True(t, os.IsNotExist(err), "socket file survived Stop")

	require.Eventually(t, func() bool { return !c.IsConnected() },
		3*time.Second, 50*time.Millisecond)
}
