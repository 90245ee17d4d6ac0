// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/pkg/core"
)

// vecToPoint converts a simulation-frame vector to an XYZ geom.Point
func vecToPoint(v mgl64.Vec3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v[0], Y: v[1]}, Z: v[2], Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// idString renders the nil UUID as an empty column value.
func idString(id core.SessionID) string {
	if id == core.NoSession {
		return ""
	}
	return id.String()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		SessionUUID: idString(s.ID),
		Name:        s.Name,
		StartTime:   s.StartTime,
		FrameRate:   s.FrameRate,
		WorldOffset: vecToPoint(s.WorldOffset),
		Tags:        datatypes.JSON("[]"),
	}
}

// CoreToEntity converts a core.EntityInfo to a GORM model.Entity. The
// session ID is stamped by the writer.
func CoreToEntity(e core.EntityInfo) model.Entity {
	shape := e.Shape
	if shape == "" {
		shape = "none"
	}
	return model.Entity{
		EntityUUID:    e.ID.String(),
		Name:          e.Name,
		Shape:         shape,
		Mass:          e.Mass,
		Dynamic:       e.Dynamic,
		Collisionless: e.Collisionless,
		AddedAt:       e.AddedAt,
		RemovedAt:     nullTime(e.RemovedAt),
	}
}

// CoreToEntityEdit converts a core.EntityEdit to a GORM model.EntityEdit.
// The full sparse property set is kept as JSON; position and simulator ID are
// also broken out into their own columns for querying.
func CoreToEntityEdit(e core.EntityEdit) model.EntityEdit {
	props := datatypes.JSON("{}")
	if data, err := json.Marshal(e.Properties); err == nil {
		props = datatypes.JSON(data)
	}

	out := model.EntityEdit{
		Time:       e.Time,
		EntityUUID: e.EntityID.String(),
		Step:       e.Step,
		Properties: props,
	}
	if e.Properties.Position != nil {
		out.Position = vecToPoint(*e.Properties.Position)
		out.HasPosition = true
	}
	if e.Properties.SimulatorID != nil {
		out.SimulatorID = idString(*e.Properties.SimulatorID)
	}
	return out
}

// CoreToOwnershipChange converts a core.OwnershipChange to a GORM model.OwnershipChange.
func CoreToOwnershipChange(c core.OwnershipChange) model.OwnershipChange {
	return model.OwnershipChange{
		Time:       c.Time,
		EntityUUID: c.EntityID.String(),
		Step:       c.Step,
		Previous:   idString(c.Previous),
		Current:    idString(c.Current),
	}
}

// CoreToSyncStats converts a core.SyncStats to a GORM model.SyncStats.
func CoreToSyncStats(s core.SyncStats) model.SyncStats {
	return model.SyncStats{
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
