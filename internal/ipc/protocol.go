// Package ipc carries traffic between the pasteup daemon and its
// clients (editor bridges and pasteupctl) over a Unix socket.
//
// Frames are a fixed 16-byte big-endian header followed by a JSON
// payload. Requests and responses correlate by request ID; the server
// can additionally push broadcast frames to subscribed clients.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x50555043 // "PUPC"
)

// MaxPayload bounds one frame's payload. Image payloads dominate frame
// size and the providers reject anything near this large anyway.
const MaxPayload = 16 << 20

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing         MessageType = 0x0001
	MsgPong         MessageType = 0x0002
	MsgHandshake    MessageType = 0x0003
	MsgHandshakeAck MessageType = 0x0004
	MsgError        MessageType = 0x0005
	MsgShutdown     MessageType = 0x0006
	MsgShutdownAck  MessageType = 0x0007

	// Daemon status (0x01xx)
	MsgStatus     MessageType = 0x0100
	MsgStatusResp MessageType = 0x0101

	// Settings (0x02xx)
	MsgGetSettings        MessageType = 0x0200
	MsgGetSettingsResp    MessageType = 0x0201
	MsgSetSettings        MessageType = 0x0202
	MsgSetSettingsResp    MessageType = 0x0203
	MsgReloadSettings     MessageType = 0x0204
	MsgReloadSettingsResp MessageType = 0x0205

	// Editor events (0x03xx)
	MsgEditorEvent     MessageType = 0x0300
	MsgEditorEventResp MessageType = 0x0301

	// Upload history (0x04xx)
	MsgHistory     MessageType = 0x0400
	MsgHistoryResp MessageType = 0x0401

	// Direct uploads (0x05xx)
	MsgUpload     MessageType = 0x0500
	MsgUploadResp MessageType = 0x0501

	// Event streaming (0x06xx)
	MsgSubscribe       MessageType = 0x0600
	MsgSubscribeResp   MessageType = 0x0601
	MsgUnsubscribe     MessageType = 0x0602
	MsgUnsubscribeResp MessageType = 0x0603
	MsgBroadcast       MessageType = 0x0604
)

// EventType identifies a broadcast event.
type EventType uint16

const (
	EventUploadStarted   EventType = 0x0001
	EventUploadSucceeded EventType = 0x0002
	EventUploadFailed    EventType = 0x0003
	EventSettingsChanged EventType = 0x0004
	EventDaemonShutdown  EventType = 0x0005
)

// Header is the fixed-size message header.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32 // payload length, header excluded
}

// HeaderSize is the encoded header size in bytes.
const HeaderSize = 16

// FlagJSON marks the payload as JSON. It is currently the only
// encoding; the flag exists so a binary one can be added without a
// protocol version bump.
const FlagJSON uint8 = 0x01

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a message of the given type.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Flags:     FlagJSON,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write encodes the header to w.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader decodes one header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %#x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write encodes the message to w.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads one complete message from r.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Error codes carried by ErrorResponse.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrNotFound       = 3
	ErrInternal       = 4
	ErrNotConfigured  = 5
	ErrUnavailable    = 6
)

// HandshakeRequest opens a client connection.
type HandshakeRequest struct {
	ClientName      string `json:"client_name"`
	ClientVersion   string `json:"client_version"`
	ProtocolVersion uint8  `json:"protocol_version"`
}

// HandshakeResponse acknowledges the connection.
type HandshakeResponse struct {
	ServerVersion   string `json:"server_version"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ClientID        string `json:"client_id"`
}

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// StatusRequest requests daemon status.
type StatusRequest struct {
	IncludeStats bool `json:"include_stats,omitempty"`
}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Version             string        `json:"version"`
	StartedAt           time.Time     `json:"started_at"`
	Uptime              time.Duration `json:"uptime"`
	Provider            string        `json:"provider,omitempty"`
	ProviderReady       bool          `json:"provider_ready"`
	ConfirmBeforeUpload bool          `json:"confirm_before_upload"`
	Editors             []string      `json:"editors,omitempty"`
	History             *HistoryStats `json:"history,omitempty"`
}

// HistoryStats aggregates the upload journal.
type HistoryStats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// GetSettingsRequest requests the daemon settings. An empty key list
// returns everything.
type GetSettingsRequest struct {
	Keys []string `json:"keys,omitempty"`
}

// GetSettingsResponse carries the requested settings. Credentials are
// redacted.
type GetSettingsResponse struct {
	Settings map[string]any `json:"settings"`
}

// SetSettingsRequest updates daemon settings by key.
type SetSettingsRequest struct {
	Settings map[string]any `json:"settings"`
}

// SetSettingsResponse acknowledges a settings change.
type SetSettingsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ReloadSettingsResponse acknowledges a reload from disk.
type ReloadSettingsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CursorPos is a zero-based line/character document position.
type CursorPos struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

// FilePayload is one transferred file. Data travels base64-encoded.
type FilePayload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// EditorEventRequest materializes one paste or drop against a document
// snapshot. The daemon builds a buffer from it, runs the interception
// flow, and returns the rewritten document.
type EditorEventRequest struct {
	EventID       string        `json:"event_id,omitempty"`
	Kind          string        `json:"kind"` // "paste" or "drop"
	DocText       string        `json:"doc_text"`
	Cursor        CursorPos     `json:"cursor"`
	SelAnchor     *CursorPos    `json:"sel_anchor,omitempty"`
	SelHead       *CursorPos    `json:"sel_head,omitempty"`
	X             int           `json:"x,omitempty"`
	Y             int           `json:"y,omitempty"`
	TransferTypes []string      `json:"transfer_types,omitempty"`
	Files         []FilePayload `json:"files,omitempty"`
}

// FileOutcome is the upload result for one file of an event.
type FileOutcome struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// EditorEventResponse carries the rewritten document. Handled reports
// whether the interception flow consumed the event. RunNativeHandler
// tells the client to invoke its native handler, with ResidualFiles
// naming the files to re-offer; an empty list means the untouched
// original event.
type EditorEventResponse struct {
	EventID          string        `json:"event_id"`
	Handled          bool          `json:"handled"`
	DocText          string        `json:"doc_text"`
	Cursor           CursorPos     `json:"cursor"`
	Outcomes         []FileOutcome `json:"outcomes,omitempty"`
	RunNativeHandler bool          `json:"run_native_handler"`
	ResidualFiles    []string      `json:"residual_files,omitempty"`
}

// HistoryRequest queries the upload journal. EventID narrows the query
// to one event; otherwise Limit bounds the newest-first listing.
type HistoryRequest struct {
	EventID string `json:"event_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// UploadRecord is the wire form of one journal row.
type UploadRecord struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Provider    string    `json:"provider"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// HistoryResponse lists journal rows plus aggregate stats.
type HistoryResponse struct {
	Records []UploadRecord `json:"records"`
	Stats   *HistoryStats  `json:"stats,omitempty"`
}

// UploadRequest uploads files directly, outside any editor event.
type UploadRequest struct {
	Files []FilePayload `json:"files"`
}

// UploadResponse carries per-file results in request order.
type UploadResponse struct {
	Outcomes []FileOutcome `json:"outcomes"`
}

// SubscribeRequest subscribes the connection to broadcasts. An empty
// event list subscribes to everything.
type SubscribeRequest struct {
	Events []EventType `json:"events,omitempty"`
}

// SubscribeResponse acknowledges a subscription.
type SubscribeResponse struct {
	Success bool `json:"success"`
}

// Broadcast is one server-pushed event.
type Broadcast struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	EventID   string         `json:"event_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Encode encodes a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes into v.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error response message.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message with an encoded payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
