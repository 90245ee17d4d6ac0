package convert

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/pkg/core"
)

// pointToVec converts a geom.Point back to a simulation-frame vector
func pointToVec(p geom.Point) mgl64.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{coord.XY.X, coord.XY.Y, coord.Z}
}

func parseOptionalID(s string) (core.SessionID, error) {
	return core.ParseSessionID(s)
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) (core.Session, error) {
	id, err := parseOptionalID(s.SessionUUID)
	if err != nil {
		return core.Session{}, err
	}
	return core.Session{
		ID:          id,
		Name:        s.Name,
		StartTime:   s.StartTime,
		FrameRate:   s.FrameRate,
		WorldOffset: pointToVec(s.WorldOffset),
	}, nil
}

// EntityToCore converts a GORM Entity to a core.EntityInfo.
func EntityToCore(e model.Entity) (core.EntityInfo, error) {
	id, err := core.ParseEntityID(e.EntityUUID)
	if err != nil {
		return core.EntityInfo{}, err
	}
	info := core.EntityInfo{
		ID:            id,
		Name:          e.Name,
		Shape:         e.Shape,
		Mass:          e.Mass,
		Dynamic:       e.Dynamic,
		Collisionless: e.Collisionless,
		AddedAt:       e.AddedAt,
	}
	if e.RemovedAt.Valid {
		info.RemovedAt = e.RemovedAt.Time
	}
	return info, nil
}

// EntityEditToCore converts a GORM EntityEdit to a core.EntityEdit. The
// property JSON is authoritative; the broken-out columns are ignored.
func EntityEditToCore(e model.EntityEdit) (core.EntityEdit, error) {
	id, err := core.ParseEntityID(e.EntityUUID)
	if err != nil {
		return core.EntityEdit{}, err
	}
	out := core.EntityEdit{
		EntityID: id,
		Step:     e.Step,
		Time:     e.Time,
	}
	if len(e.Properties) > 0 {
		if err := json.Unmarshal(e.Properties, &out.Properties); err != nil {
			return core.EntityEdit{}, fmt.Errorf("invalid properties for edit %d: %w", e.ID, err)
		}
	}
	return out, nil
}

// OwnershipChangeToCore converts a GORM OwnershipChange to a core.OwnershipChange.
func OwnershipChangeToCore(c model.OwnershipChange) (core.OwnershipChange, error) {
	id, err := core.ParseEntityID(c.EntityUUID)
	if err != nil {
		return core.OwnershipChange{}, err
	}
	prev, err := parseOptionalID(c.Previous)
	if err != nil {
		return core.OwnershipChange{}, err
	}
	cur, err := parseOptionalID(c.Current)
	if err != nil {
		return core.OwnershipChange{}, err
	}
	return core.OwnershipChange{
		EntityID: id,
		Step:     c.Step,
		Time:     c.Time,
		Previous: prev,
		Current:  cur,
	}, nil
}

// SyncStatsToCore converts a GORM SyncStats to a core.SyncStats.
func SyncStatsToCore(s model.SyncStats) core.SyncStats {
	return core.SyncStats{
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
