// Package streaming defines the wire protocol between physync and a remote
// edit collector.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/openworld/physync/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession    = "start_session"
	TypeEndSession      = "end_session"
	TypeAddEntity       = "add_entity"
	TypeRemoveEntity    = "remove_entity"
	TypeEntityEdits     = "entity_edits"
	TypeOwnershipChange = "ownership_change"
	TypeSyncStats       = "sync_stats"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionPayload starts a session on the collector.
type SessionPayload struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StartTime   time.Time  `json:"startTime"`
	FrameRate   float64    `json:"frameRate"`
	WorldOffset [3]float64 `json:"worldOffset"`
}

// EntityPayload announces an entity.
type EntityPayload struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Shape         string    `json:"shape,omitempty"`
	Mass          float64   `json:"mass"`
	Dynamic       bool      `json:"dynamic"`
	Collisionless bool      `json:"collisionless,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

// RemoveEntityPayload retires an entity.
type RemoveEntityPayload struct {
	ID        string    `json:"id"`
	RemovedAt time.Time `json:"removedAt"`
}

// EditPayload is one outgoing entity edit.
type EditPayload struct {
	EntityID   string                `json:"entityId"`
	Step       uint32                `json:"step"`
	Time       time.Time             `json:"time"`
	Properties core.EntityProperties `json:"properties"`
}

// EditsPayload batches the edits of one flush.
type EditsPayload struct {
	Edits []EditPayload `json:"edits"`
}

// OwnershipPayload reports a simulator ID change.
type OwnershipPayload struct {
	EntityID string    `json:"entityId"`
	Step     uint32    `json:"step"`
	Time     time.Time `json:"time"`
	Previous string    `json:"previous"`
	Current  string    `json:"current"`
}

// StatsPayload is one frame's sync stats.
type StatsPayload struct {
	Time       time.Time `json:"time"`
	Frame      uint64    `json:"frame"`
	Step       uint32    `json:"step"`
	Bodies     int       `json:"bodies"`
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Queued     int       `json:"queued"`
	Dropped    int       `json:"dropped"`
}

func idString(id core.SessionID) string {
	if id == core.NoSession {
		return ""
	}
	return id.String()
}

func NewSessionPayload(s core.Session) SessionPayload {
	return SessionPayload{
		ID:          idString(s.ID),
		Name:        s.Name,
		StartTime:   s.StartTime,
		FrameRate:   s.FrameRate,
		WorldOffset: s.WorldOffset,
	}
}

func NewEntityPayload(e core.EntityInfo) EntityPayload {
	return EntityPayload{
		ID:            e.ID.String(),
		Name:          e.Name,
		Shape:         e.Shape,
		Mass:          e.Mass,
		Dynamic:       e.Dynamic,
		Collisionless: e.Collisionless,
		AddedAt:       e.AddedAt,
	}
}

func NewEditsPayload(edits []core.EntityEdit) EditsPayload {
	out := EditsPayload{Edits: make([]EditPayload, len(edits))}
	for i, e := range edits {
		out.Edits[i] = EditPayload{
			EntityID:   e.EntityID.String(),
			Step:       e.Step,
			Time:       e.Time,
			Properties: e.Properties,
		}
	}
	return out
}

func NewOwnershipPayload(c core.OwnershipChange) OwnershipPayload {
	return OwnershipPayload{
		EntityID: c.EntityID.String(),
		Step:     c.Step,
		Time:     c.Time,
		Previous: idString(c.Previous),
		Current:  idString(c.Current),
	}
}

func NewStatsPayload(s core.SyncStats) StatsPayload {
	return StatsPayload{
		Time:       s.Time,
		Frame:      s.Frame,
		Step:       s.Step,
		Bodies:     s.Bodies,
		Candidates: s.Candidates,
		Sent:       s.Sent,
		Queued:     s.Queued,
		Dropped:    s.Dropped,
	}
}
