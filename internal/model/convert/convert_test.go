package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/pkg/core"
)

func TestPointRoundTrip(t *testing.T) {
	v := mgl64.Vec3{100.5, 200.5, 50}
	pt := vecToPoint(v)

	assert.Equal(t, geom.DimXYZ, pt.CoordinatesType())
	assert.Equal(t, v, pointToVec(pt))
	assert.Equal(t, mgl64.Vec3{}, pointToVec(geom.Point{}))
}

func TestCoreToSession(t *testing.T) {
	now := time.Now()
	s := core.Session{ID: core.NewSessionID(), Name: "alice", StartTime: now, FrameRate: 90, WorldOffset: mgl64.Vec3{1, 2, 3}}

	m := CoreToSession(s)
	assert.Equal(t, s.ID.String(), m.SessionUUID)
	assert.Equal(t, "alice", m.Name)
	assert.Equal(t, now, m.StartTime)
	assert.Equal(t, datatypes.JSON("[]"), m.Tags)

	back, err := SessionToCore(m)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestCoreToSession_Observer(t *testing.T) {
	m := CoreToSession(core.Session{Name: "observer"})
	assert.Equal(t, "", m.SessionUUID)

	back, err := SessionToCore(m)
	require.NoError(t, err)
	assert.Equal(t, core.NoSession, back.ID)
}

func TestCoreToEntity(t *testing.T) {
	added := time.Now()
	info := core.EntityInfo{ID: core.NewEntityID(), Name: "crate", Mass: 2, Dynamic: true, AddedAt: added}

	m := CoreToEntity(info)
	assert.Equal(t, info.ID.String(), m.EntityUUID)
	assert.Equal(t, "none", m.Shape)
	assert.False(t, m.RemovedAt.Valid)

	info.RemovedAt = added.Add(time.Second)
	m = CoreToEntity(info)
	assert.True(t, m.RemovedAt.Valid)

	back, err := EntityToCore(m)
	require.NoError(t, err)
	assert.Equal(t, info.RemovedAt, back.RemovedAt)
	assert.Equal(t, "none", back.Shape)
}

func TestCoreToEntityEdit(t *testing.T) {
	owner := core.NewSessionID()
	var props core.EntityProperties
	props.SetPosition(mgl64.Vec3{1, 2, 3})
	props.SetVelocity(mgl64.Vec3{0, -1, 0})
	props.SetSimulatorID(owner)

	edit := core.EntityEdit{EntityID: core.NewEntityID(), Step: 42, Time: time.Now(), Properties: props}
	m := CoreToEntityEdit(edit)

	assert.Equal(t, uint32(42), m.Step)
	assert.True(t, m.HasPosition)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, pointToVec(m.Position))
	assert.Equal(t, owner.String(), m.SimulatorID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(m.Properties, &decoded))
	assert.Contains(t, decoded, "velocity")
	assert.NotContains(t, decoded, "rotation")

	back, err := EntityEditToCore(m)
	require.NoError(t, err)
	assert.Equal(t, edit.EntityID, back.EntityID)
	require.NotNil(t, back.Properties.Velocity)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, *back.Properties.Velocity)
	require.NotNil(t, back.Properties.SimulatorID)
	assert.Equal(t, owner, *back.Properties.SimulatorID)
}

func TestCoreToEntityEdit_Release(t *testing.T) {
	var props core.EntityProperties
	props.SetSimulatorID(core.NoSession)

	m := CoreToEntityEdit(core.EntityEdit{EntityID: core.NewEntityID(), Properties: props})
	assert.False(t, m.HasPosition)
	assert.Equal(t, "", m.SimulatorID)
}

func TestEntityEditToCore_BadJSON(t *testing.T) {
	_, err := EntityEditToCore(model.EntityEdit{EntityUUID: core.NewEntityID().String(), Properties: datatypes.JSON("{")})
	assert.Error(t, err)

	_, err = EntityEditToCore(model.EntityEdit{EntityUUID: "nope"})
	assert.Error(t, err)
}

func TestOwnershipChangeRoundTrip(t *testing.T) {
	c := core.OwnershipChange{
		EntityID: core.NewEntityID(),
		Step:     9,
		Time:     time.Now(),
		Previous: core.NoSession,
		Current:  core.NewSessionID(),
	}

	m := CoreToOwnershipChange(c)
	assert.Equal(t, "", m.Previous)

	back, err := OwnershipChangeToCore(m)
	require.NoError(t, err)
	assert.Equal(t, c, back)

	m.Current = "garbage"
	_, err = OwnershipChangeToCore(m)
	assert.Error(t, err)
}

func TestSyncStatsRoundTrip(t *testing.T) {
	s := core.SyncStats{Time: time.Now(), Frame: 10, Step: 10, Bodies: 3, Candidates: 2, Sent: 1, Queued: 4, Dropped: 1}
	assert.Equal(t, s, SyncStatsToCore(CoreToSyncStats(s)))
}
