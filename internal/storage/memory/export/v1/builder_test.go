package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/pkg/core"
)

func testSession(start time.Time) *core.Session {
	return &core.Session{
		ID:          core.NewSessionID(),
		Name:        "alice",
		StartTime:   start,
		FrameRate:   60,
		WorldOffset: mgl64.Vec3{1, 2, 3},
	}
}

func TestBuild_Empty(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(start)

	export := Build(&SessionData{Session: s, Entities: map[core.EntityID]*EntityRecord{}})

	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.Equal(t, s.ID.String(), export.SessionID)
	assert.Equal(t, "alice", export.SessionName)
	assert.Equal(t, "2024-05-01T12:00:00Z", export.StartTime)
	assert.Empty(t, export.EndTime)
	assert.Equal(t, [3]float64{1, 2, 3}, export.WorldOffset)
	assert.NotNil(t, export.Entities)
	assert.NotNil(t, export.Ownership)
	assert.NotNil(t, export.Stats)
	assert.Equal(t, uint32(0), export.EndStep)
}

func TestBuild_EntitiesAndEdits(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(start)

	first := core.NewEntityID()
	second := core.NewEntityID()

	var props core.EntityProperties
	props.SetVelocity(mgl64.Vec3{0, -1, 0})

	data := &SessionData{
		Session: s,
		EndTime: start.Add(10 * time.Second),
		Entities: map[core.EntityID]*EntityRecord{
			second: {Info: core.EntityInfo{ID: second, Name: "late", AddedAt: start.Add(2 * time.Second)}},
			first: {
				Info: core.EntityInfo{
					ID:        first,
					Name:      "crate",
					Shape:     "box",
					Mass:      3,
					Dynamic:   true,
					AddedAt:   start.Add(time.Second),
					RemovedAt: start.Add(5 * time.Second),
				},
				Edits: []core.EntityEdit{
					{EntityID: first, Step: 12, Time: start.Add(1500 * time.Millisecond), Properties: props},
					{EntityID: first, Step: 40, Time: start.Add(2 * time.Second), Properties: props},
				},
			},
		},
	}

	export := Build(data)
	require.Len(t, export.Entities, 2)

	crate := export.Entities[0]
	assert.Equal(t, first.String(), crate.ID)
	assert.Equal(t, "box", crate.Shape)
	assert.Equal(t, int64(1000), crate.AddedAt)
	assert.Equal(t, int64(5000), crate.RemovedAt)
	require.Len(t, crate.Edits, 2)
	assert.Equal(t, uint32(12), crate.Edits[0][0])
	assert.Equal(t, int64(1500), crate.Edits[0][1])

	late := export.Entities[1]
	assert.Equal(t, "none", late.Shape)
	assert.Equal(t, int64(-1), late.RemovedAt)
	assert.Empty(t, late.Edits)

	assert.Equal(t, uint32(40), export.EndStep)
	assert.Equal(t, "2024-05-01T12:00:10Z", export.EndTime)
}

func TestBuild_OwnershipAndStats(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(start)
	id := core.NewEntityID()

	export := Build(&SessionData{
		Session:  s,
		Entities: map[core.EntityID]*EntityRecord{},
		OwnershipChanges: []core.OwnershipChange{
			{EntityID: id, Step: 5, Time: start.Add(time.Second), Previous: core.NoSession, Current: s.ID},
		},
		SyncStats: []core.SyncStats{
			{Frame: 90, Step: 90, Bodies: 4, Candidates: 2, Sent: 1},
		},
	})

	require.Len(t, export.Ownership, 1)
	assert.Equal(t, []any{uint32(5), int64(1000), id.String(), "", s.ID.String()}, export.Ownership[0])

	require.Len(t, export.Stats, 1)
	assert.Equal(t, []any{uint64(90), uint32(90), 4, 2, 1, 0, 0}, export.Stats[0])
	assert.Equal(t, uint32(90), export.EndStep)
}

func TestBuild_EncodesProperties(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(start)
	id := core.NewEntityID()

	var props core.EntityProperties
	props.SetPosition(mgl64.Vec3{1, 0, 0})

	export := Build(&SessionData{
		Session: s,
		Entities: map[core.EntityID]*EntityRecord{
			id: {Info: core.EntityInfo{ID: id}, Edits: []core.EntityEdit{{EntityID: id, Step: 1, Time: start, Properties: props}}},
		},
	})

	raw, err := json.Marshal(export)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"position":[1,0,0]`)
	assert.NotContains(t, string(raw), `"velocity"`)
}

func TestOwnerString(t *testing.T) {
	assert.Equal(t, "", ownerString(core.NoSession))
	id := core.NewSessionID()
	assert.Equal(t, id.String(), ownerString(id))
}
