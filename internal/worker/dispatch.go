package worker

import (
	"fmt"

	"github.com/openworld/physync/internal/dispatcher"
	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/internal/simulation"
	"github.com/openworld/physync/pkg/core"
)

const (
	CmdSessionStart = "session:start"
	CmdSessionEnd   = "session:end"
	CmdEntityAdd    = "entity:add"
	CmdEntityEdit   = "entity:edit"
	CmdEntityDelete = "entity:delete"
	CmdEntityBump   = "entity:bump"
)

// RegisterHandlers registers all server notification handlers with the
// dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle - sync
	d.Register(CmdSessionStart, m.handleSessionStart, dispatcher.Logged())
	d.Register(CmdSessionEnd, m.handleSessionEnd, dispatcher.Logged())

	// Entity creation - sync (need to cache before edits arrive)
	d.Register(CmdEntityAdd, m.handleEntityAdd, dispatcher.Logged())

	// High-volume edits - buffered
	d.Register(CmdEntityEdit, m.handleEntityEdit, dispatcher.Buffered(10000), dispatcher.Logged())

	d.Register(CmdEntityDelete, m.handleEntityDelete, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(CmdEntityBump, m.handleEntityBump, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	s, err := m.deps.Parser.ParseSession(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	m.deps.EntityCache.Reset()
	m.sim.ClearEntities()
	m.deps.Session.SetSession(s)
	m.sim.SetSession(s)

	if m.hasBackend() {
		if err := m.backend.StartSession(&s); err != nil {
			return nil, fmt.Errorf("failed to record session start: %w", err)
		}
	}

	m.deps.Logger.Info("Session started", "id", s.ID, "name", s.Name)
	return s.ID.String(), nil
}

func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	if !m.deps.Session.Active() {
		return nil, ErrNoSession
	}

	m.sim.SetSession(core.Session{})
	m.deps.Session.End()

	if m.hasBackend() {
		if err := m.backend.EndSession(); err != nil {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}
	}

	m.deps.Logger.Info("Session ended", "duration", m.deps.Session.Duration())
	return nil, nil
}

func (m *Manager) handleEntityAdd(e dispatcher.Event) (any, error) {
	if !m.deps.Session.Active() {
		return nil, ErrNoSession
	}

	def, err := m.deps.Parser.ParseEntityAdd(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add entity: %w", err)
	}

	ent := entity.New(def)
	if err := m.deps.EntityCache.Add(ent); err != nil {
		return nil, err
	}

	m.sim.Do(func(sim *simulation.Simulation) {
		sim.AddEntity(ent)
	})

	if m.hasBackend() {
		info := core.EntityInfo{
			ID:            ent.ID(),
			Name:          ent.Name(),
			Shape:         def.Shape.Type.String(),
			Mass:          def.Mass,
			Dynamic:       def.Dynamic,
			Collisionless: def.Collisionless,
			AddedAt:       e.Timestamp,
		}
		if err := m.backend.AddEntity(&info); err != nil {
			return nil, fmt.Errorf("failed to record entity: %w", err)
		}
	}

	return ent.ID().String(), nil
}

func (m *Manager) handleEntityEdit(e dispatcher.Event) (any, error) {
	edit, err := m.deps.Parser.ParseEntityEdit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to edit entity: %w", err)
	}

	ent, err := m.deps.EntityCache.Get(edit.EntityID)
	if err != nil {
		return nil, err
	}

	var change *core.OwnershipChange
	m.sim.Do(func(sim *simulation.Simulation) {
		prevOwner := ent.SimulatorID()
		prevName := ent.Name()

		flags := ent.ApplyProperties(edit.Properties)
		if ent.Name() != prevName {
			m.deps.EntityCache.Rename(ent, prevName)
		}
		if flags == 0 {
			return
		}
		sim.ChangeEntity(ent)

		if flags.Has(core.DirtySimulatorID) {
			change = &core.OwnershipChange{
				EntityID: ent.ID(),
				Step:     edit.Step,
				Time:     e.Timestamp,
				Previous: prevOwner,
				Current:  ent.SimulatorID(),
			}
		}
	})

	if change != nil && m.hasBackend() {
		if err := m.backend.RecordOwnershipChange(change); err != nil {
			return nil, fmt.Errorf("failed to record ownership change: %w", err)
		}
	}
	return nil, nil
}

func (m *Manager) handleEntityDelete(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseEntityID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to delete entity: %w", err)
	}

	ent, err := m.deps.EntityCache.Remove(id)
	if err != nil {
		return nil, err
	}

	m.sim.Do(func(sim *simulation.Simulation) {
		sim.RemoveEntity(ent)
	})

	if m.hasBackend() {
		if err := m.backend.RemoveEntity(id, e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to record entity removal: %w", err)
		}
	}
	return nil, nil
}

// handleEntityBump makes the entity a candidate for ownership, e.g. after a
// local avatar touched it.
func (m *Manager) handleEntityBump(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseEntityID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to bump entity: %w", err)
	}
	if _, err := m.deps.EntityCache.Get(id); err != nil {
		return nil, err
	}

	bumped := false
	m.sim.Do(func(sim *simulation.Simulation) {
		if b, ok := sim.Bridge(id); ok {
			b.Bump()
			bumped = true
		}
	})
	if !bumped {
		m.deps.Logger.Debug("bumped entity has no body yet", "entity", id)
	}
	return bumped, nil
}
