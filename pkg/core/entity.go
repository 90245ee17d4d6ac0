// pkg/core/entity.go
package core

import "time"

// EntityInfo is the storage view of an entity's lifetime.
type EntityInfo struct {
	ID            EntityID
	Name          string
	Shape         string
	Mass          float64
	Dynamic       bool
	Collisionless bool
	AddedAt       time.Time
	RemovedAt     time.Time
}

// ExportMetadata describes an exported session journal.
type ExportMetadata struct {
	SessionID   SessionID
	SessionName string
	Duration    float64
	Entities    int
	Edits       int
	Ownership   int
}
