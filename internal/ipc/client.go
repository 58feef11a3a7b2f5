package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"pasteup/internal/config"
)

// Client errors.
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrConnectionLost   = errors.New("connection to daemon lost")
	ErrRequestTimeout   = errors.New("request timed out")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// DaemonError is an error response from the daemon.
type DaemonError struct {
	Code    int
	Message string
}

func (e *DaemonError) Error() string {
	return e.Message
}

// ClientConfig configures the IPC client.
type ClientConfig struct {
	SocketPath     string
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	AutoReconnect  bool
	ReconnectWait  time.Duration
	MaxReconnect   int
}

// DefaultClientConfig returns client defaults against the standard
// daemon socket.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SocketPath:     config.DefaultSocketPath(),
		ClientName:     "pasteupctl",
		ClientVersion:  "dev",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
		AutoReconnect:  false,
		ReconnectWait:  time.Second,
		MaxReconnect:   3,
	}
}

// Client talks to the pasteup daemon. All methods are safe for
// concurrent use.
type Client struct {
	mu       sync.RWMutex
	conn     net.Conn
	clientID string

	connected    atomic.Bool
	reconnecting atomic.Bool

	pending   map[uint32]chan *Message
	pendingMu sync.Mutex
	nextReqID atomic.Uint32

	broadcasts chan *Broadcast

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg ClientConfig
}

// NewClient creates a client that is not yet connected.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		pending:    make(map[uint32]chan *Message),
		broadcasts: make(chan *Broadcast, 64),
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
	}
}

// Connect dials the daemon socket and performs the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected.Load() {
		c.mu.Unlock()
		return nil
	}

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("unix", c.cfg.SocketPath)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("connect: %w", err)
	}

	c.conn = conn
	c.connected.Store(true)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop()

	if err := c.handshake(); err != nil {
		c.close()
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// Close shuts the client down and drops the connection.
func (c *Client) Close() error {
	c.cancel()
	c.close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	close(c.broadcasts)
	return nil
}

// close drops the connection without signaling shutdown.
func (c *Client) close() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)
	c.mu.Unlock()

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint32]chan *Message)
	c.pendingMu.Unlock()
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// ClientID returns the ID the server assigned in the handshake.
func (c *Client) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Broadcasts returns the channel of server-pushed events. Subscribe
// first; the channel closes on Close.
func (c *Client) Broadcasts() <-chan *Broadcast {
	return c.broadcasts
}

func (c *Client) handshake() error {
	resp, err := c.request(MsgHandshake, &HandshakeRequest{
		ClientName:      c.cfg.ClientName,
		ClientVersion:   c.cfg.ClientVersion,
		ProtocolVersion: ProtocolVersion,
	})
	if err != nil {
		return err
	}

	var ack HandshakeResponse
	if err := decodeResponse(resp, MsgHandshakeAck, &ack); err != nil {
		return err
	}

	c.mu.Lock()
	c.clientID = ack.ClientID
	c.mu.Unlock()
	return nil
}

func (c *Client) request(msgType MessageType, payload any) (*Message, error) {
	return c.requestWithTimeout(msgType, payload, c.cfg.RequestTimeout)
}

func (c *Client) requestWithTimeout(msgType MessageType, payload any, timeout time.Duration) (*Message, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	var data []byte
	if payload != nil {
		var err error
		data, err = Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(msgType, reqID, data)

	respChan := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := msg.Write(conn); err != nil {
		c.close()
		return nil, fmt.Errorf("write message: %w", err)
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, ErrConnectionLost
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrRequestTimeout
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			if c.cfg.AutoReconnect {
				c.tryReconnect()
				continue
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msg, err := ReadMessage(conn)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.sendPing()
				continue
			}
			c.close()
			if c.cfg.AutoReconnect {
				c.tryReconnect()
				continue
			}
			return
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Header.Type {
	case MsgPing:
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			pong := NewMessage(MsgPong, msg.Header.RequestID, nil)
			pong.Write(conn)
		}

	case MsgBroadcast:
		var b Broadcast
		if err := Decode(msg.Payload, &b); err == nil {
			select {
			case c.broadcasts <- &b:
			default:
				// Receiver is not draining; drop rather than stall
				// the read loop.
			}
		}

	default:
		// Responses correlate by request ID. A pong answering a
		// keepalive ping has no pending entry and falls through.
		c.pendingMu.Lock()
		if ch, ok := c.pending[msg.Header.RequestID]; ok {
			select {
			case ch <- msg:
			default:
			}
		}
		c.pendingMu.Unlock()
	}
}

func (c *Client) sendPing() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		msg := NewMessage(MsgPing, c.nextReqID.Add(1), nil)
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		msg.Write(conn)
	}
}

func (c *Client) tryReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	for i := 0; i < c.cfg.MaxReconnect; i++ {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectWait):
		}
		if err := c.Connect(); err == nil {
			return
		}
	}
}

// decodeResponse maps an error frame to DaemonError, checks the
// response type, and decodes the payload into v when v is non-nil.
func decodeResponse(resp *Message, want MessageType, v any) error {
	if resp.Header.Type == MsgError {
		var er ErrorResponse
		if err := Decode(resp.Payload, &er); err != nil {
			return &DaemonError{Code: ErrUnknown, Message: "malformed error response"}
		}
		return &DaemonError{Code: er.Code, Message: er.Message}
	}
	if resp.Header.Type != want {
		return fmt.Errorf("unexpected response type %#04x", uint16(resp.Header.Type))
	}
	if v == nil {
		return nil
	}
	return Decode(resp.Payload, v)
}

// Ping checks that the daemon is responsive.
func (c *Client) Ping() error {
	resp, err := c.requestWithTimeout(MsgPing, nil, 5*time.Second)
	if err != nil {
		return err
	}
	return decodeResponse(resp, MsgPong, nil)
}

// Status fetches the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.request(MsgStatus, &StatusRequest{IncludeStats: true})
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := decodeResponse(resp, MsgStatusResp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Settings fetches daemon settings, optionally narrowed to keys.
func (c *Client) Settings(keys ...string) (map[string]any, error) {
	resp, err := c.request(MsgGetSettings, &GetSettingsRequest{Keys: keys})
	if err != nil {
		return nil, err
	}
	var out GetSettingsResponse
	if err := decodeResponse(resp, MsgGetSettingsResp, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// SetSettings updates daemon settings by key.
func (c *Client) SetSettings(settings map[string]any) error {
	resp, err := c.request(MsgSetSettings, &SetSettingsRequest{Settings: settings})
	if err != nil {
		return err
	}
	var out SetSettingsResponse
	if err := decodeResponse(resp, MsgSetSettingsResp, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("set settings: %s", out.Error)
	}
	return nil
}

// ReloadSettings asks the daemon to re-read its configuration file.
func (c *Client) ReloadSettings() error {
	resp, err := c.request(MsgReloadSettings, nil)
	if err != nil {
		return err
	}
	var out ReloadSettingsResponse
	if err := decodeResponse(resp, MsgReloadSettingsResp, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("reload settings: %s", out.Error)
	}
	return nil
}

// SendEditorEvent forwards one paste or drop to the daemon and returns
// the rewritten document. Uploads run daemon-side, so the timeout
// scales with the file count.
func (c *Client) SendEditorEvent(req *EditorEventRequest) (*EditorEventResponse, error) {
	timeout := c.cfg.RequestTimeout + time.Duration(len(req.Files))*time.Minute
	resp, err := c.requestWithTimeout(MsgEditorEvent, req, timeout)
	if err != nil {
		return nil, err
	}
	var out EditorEventResponse
	if err := decodeResponse(resp, MsgEditorEventResp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists upload journal rows. A non-empty eventID narrows the
// query to that event; otherwise limit bounds the newest-first list.
func (c *Client) History(eventID string, limit int) (*HistoryResponse, error) {
	resp, err := c.request(MsgHistory, &HistoryRequest{EventID: eventID, Limit: limit})
	if err != nil {
		return nil, err
	}
	var out HistoryResponse
	if err := decodeResponse(resp, MsgHistoryResp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends files for direct upload, outside any editor event.
func (c *Client) Upload(files []FilePayload) (*UploadResponse, error) {
	timeout := c.cfg.RequestTimeout + time.Duration(len(files))*time.Minute
	resp, err := c.requestWithTimeout(MsgUpload, &UploadRequest{Files: files}, timeout)
	if err != nil {
		return nil, err
	}
	var out UploadResponse
	if err := decodeResponse(resp, MsgUploadResp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe subscribes to daemon broadcasts. With no arguments the
// client receives every event type.
func (c *Client) Subscribe(events ...EventType) error {
	resp, err := c.request(MsgSubscribe, &SubscribeRequest{Events: events})
	if err != nil {
		return err
	}
	var out SubscribeResponse
	if err := decodeResponse(resp, MsgSubscribeResp, &out); err != nil {
		return err
	}
	if !out.Success {
		return errors.New("subscription refused")
	}
	return nil
}

// Unsubscribe cancels the broadcast subscription.
func (c *Client) Unsubscribe() error {
	resp, err := c.request(MsgUnsubscribe, nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, MsgUnsubscribeResp, nil)
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown() error {
	resp, err := c.request(MsgShutdown, nil)
	if err != nil {
		return err
	}
	var out ShutdownResponse
	return decodeResponse(resp, MsgShutdownAck, &out)
}
