package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&PhysyncInfo{},
	&Session{},
	&Entity{},
	&EntityEdit{},
	&OwnershipChange{},
	&SyncStats{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// PhysyncInfo describes the instance that wrote the database
type PhysyncInfo struct {
	gorm.Model
	InstanceName   string `json:"instanceName" gorm:"size:127"`
	SchemaVersion  uint   `json:"schemaVersion"`
	CompressedEdit bool   `json:"compressedEdit" gorm:"default:false"`
}

func (*PhysyncInfo) TableName() string {
	return "physync_infos"
}

// SyncStats is one frame's synchronization summary
type SyncStats struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time                time.Time `json:"time" gorm:"type:timestamptz;index:idx_syncstats_time"`
	SessionID           uint      `json:"sessionId" gorm:"index:idx_syncstats_session_id"`
	Session             Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame               uint64    `json:"frame"`
	Step                uint32    `json:"step"`
	Bodies              int       `json:"bodies"`
	Candidates          int       `json:"candidates"`
	Sent                int       `json:"sent"`
	Queued              int       `json:"queued"`
	Dropped             int       `json:"dropped"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*SyncStats) TableName() string {
	return "sync_stats"
}

////////////////////////
// SESSION DATA
////////////////////////

// Session is one participant's run of the simulation
type Session struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	SessionUUID string         `json:"sessionUuid" gorm:"size:36;index:idx_session_uuid"`
	Name        string         `json:"name" gorm:"size:127"`
	StartTime   time.Time      `json:"startTime" gorm:"type:timestamptz;NOT NULL"`
	EndTime     sql.NullTime   `json:"endTime" gorm:"type:timestamptz;default:NULL"`
	FrameRate   float64        `json:"frameRate"`
	WorldOffset geom.Point     `json:"worldOffset"`
	Tags        datatypes.JSON `json:"tags" gorm:"type:jsonb;default:'[]'"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Entity is an entity's lifetime within a session
// Uses composite primary key (SessionID, EntityUUID)
type Entity struct {
	SessionID     uint         `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	EntityUUID    string       `json:"entityUuid" gorm:"primaryKey;size:36"`
	Session       Session      `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name          string       `json:"name" gorm:"size:127"`
	Shape         string       `json:"shape" gorm:"size:16;default:none"`
	Mass          float64      `json:"mass"`
	Dynamic       bool         `json:"dynamic" gorm:"default:false"`
	Collisionless bool         `json:"collisionless" gorm:"default:false"`
	AddedAt       time.Time    `json:"addedAt" gorm:"type:timestamptz;index:idx_entity_added_at"`
	RemovedAt     sql.NullTime `json:"removedAt" gorm:"type:timestamptz;default:NULL"`
}

func (*Entity) TableName() string {
	return "entities"
}

// EntityEdit is one outgoing entity-edit message
type EntityEdit struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_entityedit_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	EntityUUID string    `json:"entityUuid" gorm:"size:36;index:idx_entityedit_entity_uuid"`
	Step       uint32    `json:"step" gorm:"index:idx_entityedit_step"`

	Position    geom.Point     `json:"position"`                            // Position in the simulation frame, empty when not sent
	HasPosition bool           `json:"hasPosition" gorm:"default:false"`    // Whether the edit carried a position
	SimulatorID string         `json:"simulatorId" gorm:"size:36"`          // Owner claimed or released by the edit, empty if unchanged
	Properties  datatypes.JSON `json:"properties" gorm:"type:jsonb;default:'{}'"` // Sparse property set as sent
}

func (*EntityEdit) TableName() string {
	return "entity_edits"
}

// OwnershipChange records a simulator ID change reported by the server
type OwnershipChange struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_ownership_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	EntityUUID string    `json:"entityUuid" gorm:"size:36;index:idx_ownership_entity_uuid"`
	Step       uint32    `json:"step"`
	Previous   string    `json:"previous" gorm:"size:36"`
	Current    string    `json:"current" gorm:"size:36"`
}

func (*OwnershipChange) TableName() string {
	return "ownership_changes"
}
