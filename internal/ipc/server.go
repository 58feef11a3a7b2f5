package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"pasteup/internal/logging"
)

// Handler processes one decoded request frame and returns the response
// frame, or nil for no response.
type Handler interface {
	HandleMessage(ctx context.Context, conn *Conn, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *Conn, msg *Message) (*Message, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, conn *Conn, msg *Message) (*Message, error) {
	return f(ctx, conn, msg)
}

// Conn is one accepted client connection.
type Conn struct {
	// ID identifies the connection for the lifetime of the server.
	ID string

	ConnectedAt time.Time

	conn net.Conn

	mu           sync.Mutex
	name         string
	version      string
	lastActivity time.Time

	// writeMu serializes frames on the wire; responses and broadcasts
	// come from different goroutines.
	writeMu sync.Mutex
}

// Name returns the client name reported in the handshake.
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// subscription tracks which broadcasts a connection wants.
type subscription struct {
	all    bool
	events map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	return s.all || s.events[t]
}

// ServerConfig configures the daemon socket.
type ServerConfig struct {
	SocketPath     string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
}

// DefaultServerConfig returns the server defaults under dataDir.
func DefaultServerConfig(dataDir string) ServerConfig {
	return ServerConfig{
		SocketPath:     filepath.Join(dataDir, "pasteupd.sock"),
		Version:        "dev",
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxConnections: 32,
	}
}

// Server listens on a Unix socket and dispatches frames to the handler.
type Server struct {
	mu          sync.RWMutex
	listener    net.Listener
	cfg         ServerConfig
	handler     Handler
	conns       map[string]*Conn
	subscribers map[string]*subscription
	onShutdown  func()
	log         *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	nextConnID  atomic.Uint64
	nextFrameID atomic.Uint32

	broadcastCh chan *Broadcast
}

// NewServer creates a server that is not yet listening.
func NewServer(cfg ServerConfig, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Default().Logger
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		handler:     handler,
		conns:       make(map[string]*Conn),
		subscribers: make(map[string]*subscription),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		broadcastCh: make(chan *Broadcast, 128),
	}
}

// OnShutdown registers a callback invoked when a client requests
// daemon shutdown. The callback runs on its own goroutine.
func (s *Server) OnShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = fn
}

// Start begins listening on the configured socket.
func (s *Server) Start() error {
	socketDir := filepath.Dir(s.cfg.SocketPath)
	if err := os.MkdirAll(socketDir, 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}

	// The socket is single-user: the peer UID check in the accept
	// loop backs this up.
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info("ipc server listening", "socket", s.cfg.SocketPath)
	return nil
}

// Stop shuts the server down, closing every connection. It waits a
// bounded time for in-flight handlers.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for _, conn := range s.conns {
		conn.conn.Close()
	}
	s.mu.Unlock()

	close(s.broadcastCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn("ipc server stop timed out")
	}

	os.Remove(s.cfg.SocketPath)
	return nil
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

// ConnCount returns the number of connected clients.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Broadcast queues an event for subscribed clients. It never blocks;
// the event is dropped if the queue is full.
func (s *Server) Broadcast(b *Broadcast) {
	if !s.running.Load() {
		return
	}
	select {
	case s.broadcastCh <- b:
	default:
		s.log.Debug("broadcast queue full, dropping event", "type", b.Type)
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		// Mode 0600 on the socket is the primary gate; the UID check
		// catches sockets exposed through shared directories.
		if uid, err := peerUID(netConn); err == nil && uid != os.Getuid() {
			s.log.Warn("rejecting connection from foreign uid", "uid", uid)
			netConn.Close()
			continue
		}

		s.mu.RLock()
		count := len(s.conns)
		s.mu.RUnlock()
		if count >= s.cfg.MaxConnections {
			s.log.Warn("connection limit reached, rejecting client")
			netConn.Close()
			continue
		}

		conn := &Conn{
			ID:           fmt.Sprintf("conn-%d", s.nextConnID.Add(1)),
			ConnectedAt:  time.Now(),
			conn:         netConn,
			lastActivity: time.Now(),
		}

		s.mu.Lock()
		s.conns[conn.ID] = conn
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.ID)
		delete(s.subscribers, conn.ID)
		s.mu.Unlock()
		conn.conn.Close()
	}()

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		msg, err := ReadMessage(conn.conn)
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Idle connection; a ping keeps it from going stale.
				s.send(conn, NewMessage(MsgPing, s.nextFrameID.Add(1), nil))
				continue
			}
			s.log.Debug("client read failed", "conn", conn.ID, "error", err)
			return
		}

		conn.mu.Lock()
		conn.lastActivity = time.Now()
		conn.mu.Unlock()

		resp := s.dispatch(conn, msg)
		if resp != nil {
			if err := s.send(conn, resp); err != nil {
				return
			}
		}
	}
}

// dispatch processes one frame. A handler panic turns into an error
// response instead of taking the daemon down.
func (s *Server) dispatch(conn *Conn, msg *Message) (resp *Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic",
				"conn", conn.ID,
				"type", fmt.Sprintf("%#04x", uint16(msg.Header.Type)),
				"panic", r)
			resp = NewErrorMessage(msg.Header.RequestID, ErrInternal, "internal error")
		}
	}()

	out, err := s.processMessage(conn, msg)
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternal, err.Error())
	}
	return out
}

func (s *Server) processMessage(conn *Conn, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, msg.Header.RequestID, nil), nil

	case MsgPong:
		return nil, nil

	case MsgHandshake:
		return s.handleHandshake(conn, msg)

	case MsgSubscribe:
		return s.handleSubscribe(conn, msg)

	case MsgUnsubscribe:
		s.mu.Lock()
		delete(s.subscribers, conn.ID)
		s.mu.Unlock()
		return NewMessage(MsgUnsubscribeResp, msg.Header.RequestID, nil), nil

	case MsgShutdown:
		s.mu.RLock()
		fn := s.onShutdown
		s.mu.RUnlock()
		if fn == nil {
			return NewErrorMessage(msg.Header.RequestID, ErrUnavailable, "shutdown not supported"), nil
		}
		go fn()
		return NewResponse(MsgShutdownAck, msg.Header.RequestID, &ShutdownResponse{Stopping: true})

	default:
		if s.handler == nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no handler"), nil
		}
		return s.handler.HandleMessage(s.ctx, conn, msg)
	}
}

func (s *Server) handleHandshake(conn *Conn, msg *Message) (*Message, error) {
	var req HandshakeRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid handshake"), nil
	}

	conn.mu.Lock()
	conn.name = req.ClientName
	conn.version = req.ClientVersion
	conn.mu.Unlock()

	s.log.Debug("client connected",
		"conn", conn.ID,
		"client", req.ClientName,
		"client_version", req.ClientVersion)

	return NewResponse(MsgHandshakeAck, msg.Header.RequestID, &HandshakeResponse{
		ServerVersion:   s.cfg.Version,
		ProtocolVersion: ProtocolVersion,
		ClientID:        conn.ID,
	})
}

func (s *Server) handleSubscribe(conn *Conn, msg *Message) (*Message, error) {
	var req SubscribeRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid subscribe request"), nil
		}
	}

	sub := &subscription{all: len(req.Events) == 0, events: make(map[EventType]bool)}
	for _, et := range req.Events {
		sub.events[et] = true
	}

	s.mu.Lock()
	s.subscribers[conn.ID] = sub
	s.mu.Unlock()

	return NewResponse(MsgSubscribeResp, msg.Header.RequestID, &SubscribeResponse{Success: true})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for b := range s.broadcastCh {
		payload, err := Encode(b)
		if err != nil {
			s.log.Warn("broadcast encode failed", "type", b.Type, "error", err)
			continue
		}

		s.mu.RLock()
		targets := make([]*Conn, 0, len(s.subscribers))
		for connID, sub := range s.subscribers {
			if sub.wants(b.Type) {
				if conn, ok := s.conns[connID]; ok {
					targets = append(targets, conn)
				}
			}
		}
		s.mu.RUnlock()

		for _, conn := range targets {
			msg := NewMessage(MsgBroadcast, s.nextFrameID.Add(1), payload)
			go s.send(conn, msg)
		}
	}
}

func (s *Server) send(conn *Conn, msg *Message) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return msg.Write(conn.conn)
}

// removeStaleSocket clears a leftover socket file. It refuses to
// remove a path that is not a socket.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat socket path: %w", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("socket path exists and is not a socket: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}
