package parser

import (
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
	require.NotNil(t, NewParser(nil).logger)
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCleanArgs(t *testing.T) {
	data := []string{` "abc" `, `{"a":""}`, `""`}
	cleanArgs(data)
	assert.Equal(t, []string{"abc", `{"a":""}`, ""}, data)
}

func TestShapeSpec_Descriptor(t *testing.T) {
	tests := []struct {
		name    string
		spec    ShapeSpec
		want    shape.Descriptor
		wantErr bool
	}{
		{"none", ShapeSpec{}, shape.Descriptor{}, false},
		{"box", ShapeSpec{Type: "box", HalfExtents: []float64{1, 2, 3}}, shape.Box(mgl64.Vec3{1, 2, 3}), false},
		{"box missing extents", ShapeSpec{Type: "box", HalfExtents: []float64{1}}, shape.Descriptor{}, true},
		{"sphere", ShapeSpec{Type: "sphere", Radius: 0.5}, shape.Sphere(0.5), false},
		{"sphere zero radius", ShapeSpec{Type: "sphere"}, shape.Descriptor{}, true},
		{"capsule", ShapeSpec{Type: "capsule-y", Radius: 0.3, HalfHeight: 1}, shape.CapsuleY(0.3, 1), false},
		{"hull without points", ShapeSpec{Type: "hull"}, shape.Descriptor{Type: shape.TypeCompound}, false},
		{"unknown", ShapeSpec{Type: "torus"}, shape.Descriptor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Descriptor()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShapeSpec_Compound(t *testing.T) {
	spec := ShapeSpec{
		Type: "compound",
		Points: [][][3]float64{
			{{0, 0, 0}, {1, 1, 1}},
			{{2, 0, 0}, {3, 1, 1}},
		},
	}

	d, err := spec.Descriptor()
	require.NoError(t, err)

	assert.Equal(t, shape.TypeCompound, d.Type)
	assert.Equal(t, 2, d.NumSubShapes())
	assert.Equal(t, mgl64.Vec3{1.5, 0.5, 0.5}, d.HalfExtents)

	_, err = ShapeSpec{Type: "compound", Points: [][][3]float64{{}}}.Descriptor()
	assert.Error(t, err)
}

func TestParseEntityAdd(t *testing.T) {
	p := newTestParser()
	id := core.NewEntityID()
	data := []string{`{
		"id": "` + id.String() + `",
		"name": "crate",
		"shape": {"type": "box", "halfExtents": [0.5, 0.5, 0.5]},
		"mass": 3,
		"dynamic": true,
		"properties": {"position": [1, 2, 3], "velocity": [0, -1, 0], "gravity": [0, -9.8, 0]}
	}`}

	def, err := p.ParseEntityAdd(data)
	require.NoError(t, err)

	assert.Equal(t, id, def.ID)
	assert.Equal(t, "crate", def.Name)
	assert.Equal(t, shape.Box(mgl64.Vec3{0.5, 0.5, 0.5}), def.Shape)
	assert.Equal(t, 3.0, def.Mass)
	assert.True(t, def.Dynamic)
	assert.False(t, def.Collisionless)
	require.NotNil(t, def.Properties.Position)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, *def.Properties.Position)
	require.NotNil(t, def.Properties.Gravity)
	assert.Equal(t, mgl64.Vec3{0, -9.8, 0}, *def.Properties.Gravity)
	assert.Nil(t, def.Properties.Rotation)
}

func TestParseEntityAdd_Errors(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		data []string
	}{
		{"no args", nil},
		{"bad json", []string{`{"name":`}},
		{"bad id", []string{`{"id":"nope"}`}},
		{"negative mass", []string{`{"name":"x","mass":-1}`}},
		{"bad shape", []string{`{"shape":{"type":"box"}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseEntityAdd(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestParseEntityAdd_GeneratesID(t *testing.T) {
	p := newTestParser()

	def, err := p.ParseEntityAdd([]string{`{"name":"anon"}`})
	require.NoError(t, err)

	assert.Equal(t, core.EntityID{}, def.ID, "entity.New assigns the id")
	assert.Equal(t, shape.TypeNone, def.Shape.Type)
}

func TestParseEntityEdit(t *testing.T) {
	p := newTestParser()
	id := core.NewEntityID()
	owner := core.NewSessionID()

	edit, err := p.ParseEntityEdit([]string{
		id.String(),
		`{"velocity":[1,0,0],"simulatorId":"` + owner.String() + `"}`,
		"42.00",
	})
	require.NoError(t, err)

	assert.Equal(t, id, edit.EntityID)
	assert.Equal(t, uint32(42), edit.Step)
	require.NotNil(t, edit.Properties.Velocity)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, *edit.Properties.Velocity)
	require.NotNil(t, edit.Properties.SimulatorID)
	assert.Equal(t, owner, *edit.Properties.SimulatorID)
	assert.Equal(t, core.DirtyLinearVelocity|core.DirtySimulatorID, edit.Properties.DirtyFlags())
}

func TestParseEntityEdit_Errors(t *testing.T) {
	p := newTestParser()
	id := core.NewEntityID().String()

	tests := []struct {
		name string
		data []string
	}{
		{"too few args", []string{id}},
		{"bad id", []string{"x", `{"velocity":[1,0,0]}`}},
		{"bad json", []string{id, `{`}},
		{"empty properties", []string{id, `{}`}},
		{"bad step", []string{id, `{"velocity":[1,0,0]}`, "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseEntityEdit(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestParseEntityID(t *testing.T) {
	p := newTestParser()
	id := core.NewEntityID()

	got, err := p.ParseEntityID([]string{`"` + id.String() + `"`})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = p.ParseEntityID(nil)
	assert.Error(t, err)
	_, err = p.ParseEntityID([]string{""})
	assert.Error(t, err)
}

func TestParseSession(t *testing.T) {
	p := newTestParser()
	id := core.NewSessionID()

	s, err := p.ParseSession([]string{`{"id":"` + id.String() + `","name":"alice","frameRate":90,"worldOffset":[10,0,-5]}`})
	require.NoError(t, err)

	assert.Equal(t, id, s.ID)
	assert.Equal(t, "alice", s.Name)
	assert.Equal(t, 90.0, s.FrameRate)
	assert.Equal(t, mgl64.Vec3{10, 0, -5}, s.WorldOffset)
	assert.False(t, s.StartTime.IsZero())
}

func TestParseSession_NoID(t *testing.T) {
	p := newTestParser()

	s, err := p.ParseSession([]string{`{"name":"observer"}`})
	require.NoError(t, err)
	assert.Equal(t, core.NoSession, s.ID)

	_, err = p.ParseSession([]string{`{"frameRate":-1}`})
	assert.Error(t, err)
}
