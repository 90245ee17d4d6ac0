package v1

import (
	"bytes"
	"sort"
	"time"

	"github.com/openworld/physync/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session  *core.Session
	EndTime  time.Time
	Entities map[core.EntityID]*EntityRecord

	OwnershipChanges []core.OwnershipChange
	SyncStats        []core.SyncStats
}

// EntityRecord groups an entity with all the edits sent for it
type EntityRecord struct {
	Info  core.EntityInfo
	Edits []core.EntityEdit
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	start := data.Session.StartTime
	export := Export{
		FormatVersion: FormatVersion,
		SessionID:     data.Session.ID.String(),
		SessionName:   data.Session.Name,
		StartTime:     start.UTC().Format(time.RFC3339Nano),
		FrameRate:     data.Session.FrameRate,
		WorldOffset:   data.Session.WorldOffset,
		Entities:      make([]Entity, 0, len(data.Entities)),
		Ownership:     make([][]any, 0, len(data.OwnershipChanges)),
		Stats:         make([][]any, 0, len(data.SyncStats)),
	}
	if !data.EndTime.IsZero() {
		export.EndTime = data.EndTime.UTC().Format(time.RFC3339Nano)
	}

	var endStep uint32
	for _, record := range sortedRecords(data.Entities) {
		entity := Entity{
			ID:            record.Info.ID.String(),
			Name:          record.Info.Name,
			Shape:         record.Info.Shape,
			Mass:          record.Info.Mass,
			Dynamic:       record.Info.Dynamic,
			Collisionless: record.Info.Collisionless,
			AddedAt:       millisSince(start, record.Info.AddedAt),
			RemovedAt:     -1,
			Edits:         make([][]any, 0, len(record.Edits)),
		}
		if !record.Info.RemovedAt.IsZero() {
			entity.RemovedAt = millisSince(start, record.Info.RemovedAt)
		}
		if entity.Shape == "" {
			entity.Shape = "none"
		}

		for _, edit := range record.Edits {
			entity.Edits = append(entity.Edits, []any{
				edit.Step,
				millisSince(start, edit.Time),
				edit.Properties,
			})
			if edit.Step > endStep {
				endStep = edit.Step
			}
		}
		export.Entities = append(export.Entities, entity)
	}

	// Format: [step, millisSinceStart, entityId, previousOwner, currentOwner]
	for _, c := range data.OwnershipChanges {
		export.Ownership = append(export.Ownership, []any{
			c.Step,
			millisSince(start, c.Time),
			c.EntityID.String(),
			ownerString(c.Previous),
			ownerString(c.Current),
		})
	}

	// Format: [frame, step, bodies, candidates, sent, queued, dropped]
	for _, s := range data.SyncStats {
		export.Stats = append(export.Stats, []any{
			s.Frame,
			s.Step,
			s.Bodies,
			s.Candidates,
			s.Sent,
			s.Queued,
			s.Dropped,
		})
		if s.Step > endStep {
			endStep = s.Step
		}
	}

	export.EndStep = endStep
	return export
}

// sortedRecords orders entities by when they were added, falling back to
// the ID for a stable file layout.
func sortedRecords(m map[core.EntityID]*EntityRecord) []*EntityRecord {
	out := make([]*EntityRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Info, out[j].Info
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return out
}

func millisSince(start, t time.Time) int64 {
	if t.IsZero() || start.IsZero() {
		return 0
	}
	return t.Sub(start).Milliseconds()
}

// ownerString renders NoSession as an empty string, matching the wire format
// of an unowned entity.
func ownerString(id core.SessionID) string {
	if id == core.NoSession {
		return ""
	}
	return id.String()
}
