package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openworld/physync/pkg/core"
	"github.com/openworld/physync/pkg/streaming"
)

type (
	Envelope   = streaming.Envelope
	AckMessage = streaming.AckMessage
)

const (
	TypeStartSession    = streaming.TypeStartSession
	TypeEndSession      = streaming.TypeEndSession
	TypeAddEntity       = streaming.TypeAddEntity
	TypeRemoveEntity    = streaming.TypeRemoveEntity
	TypeEntityEdits     = streaming.TypeEntityEdits
	TypeOwnershipChange = streaming.TypeOwnershipChange
	TypeSyncStats       = streaming.TypeSyncStats
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// Backoff is the first reconnect delay; zero means one second.
	Backoff time.Duration
}

// Stats counts messages handed to the socket.
type Stats struct {
	Sent       uint64
	Dropped    uint64
	Reconnects uint64
}

// Backend streams session data over WebSocket to a remote collector.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	conn := newConnection(logger)
	if cfg.Backoff > 0 {
		conn.backoff = cfg.Backoff
	}
	return &Backend{
		conn: conn,
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Stats returns message counters.
func (b *Backend) Stats() Stats {
	return Stats{
		Sent:       b.conn.sent.Load(),
		Dropped:    b.conn.dropped.Load(),
		Reconnects: b.conn.reconnects.Load(),
	}
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session and waits for the server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(TypeStartSession, streaming.NewSessionPayload(*s))
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedSessionMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedSessionMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) AddEntity(e *core.EntityInfo) error {
	return b.sendEnvelope(TypeAddEntity, streaming.NewEntityPayload(*e))
}

func (b *Backend) RemoveEntity(id core.EntityID, at time.Time) error {
	return b.sendEnvelope(TypeRemoveEntity, streaming.RemoveEntityPayload{ID: id.String(), RemovedAt: at})
}

// RecordEdits sends one batch per call. Empty batches are not sent.
func (b *Backend) RecordEdits(edits []core.EntityEdit) error {
	if len(edits) == 0 {
		return nil
	}
	return b.sendEnvelope(TypeEntityEdits, streaming.NewEditsPayload(edits))
}

func (b *Backend) RecordOwnershipChange(c *core.OwnershipChange) error {
	return b.sendEnvelope(TypeOwnershipChange, streaming.NewOwnershipPayload(*c))
}

func (b *Backend) RecordSyncStats(s *core.SyncStats) error {
	return b.sendEnvelope(TypeSyncStats, streaming.NewStatsPayload(*s))
}
