// Package simulation keeps the entity tree and the physics engine in step:
// it queues bodies to add, change and remove, steps non-physical moving
// entities and runs the outgoing synchronization pass.
package simulation

import (
	"bytes"
	"log/slog"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/engine"
	"github.com/openworld/physync/internal/motion"
	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// Entity is what the simulation needs from an entity.
type Entity interface {
	motion.Entity
	ShouldBePhysical() bool
	IsReadyToComputeShape() bool
	Update(dt float64, now time.Time)
}

// CollisionEvent is a contact between two entities.
type CollisionEvent struct {
	Type  engine.ContactType
	A, B  core.EntityID
	Point mgl64.Vec3
}

// OutgoingResult summarizes one outgoing pass.
type OutgoingResult struct {
	Candidates int
	Sent       int
}

type bridgeSet map[*motion.Bridge]struct{}

type Simulation struct {
	world  physics.World
	shapes *shape.Manager
	sender motion.EditSender
	logger *slog.Logger
	now    func() time.Time

	bridges         map[core.EntityID]*motion.Bridge
	physicalObjects bridgeSet
	pendingAdds     map[core.EntityID]Entity
	pendingRemoves  bridgeSet
	pendingChanges  bridgeSet
	outgoing        bridgeSet
	simpleKinematic map[core.EntityID]Entity

	lastStepSendPackets uint32
	onCollision         func(CollisionEvent)
}

func New(world physics.World, shapes *shape.Manager, sender motion.EditSender, logger *slog.Logger) *Simulation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulation{
		world:           world,
		shapes:          shapes,
		sender:          sender,
		logger:          logger,
		now:             time.Now,
		bridges:         make(map[core.EntityID]*motion.Bridge),
		physicalObjects: make(bridgeSet),
		pendingAdds:     make(map[core.EntityID]Entity),
		pendingRemoves:  make(bridgeSet),
		pendingChanges:  make(bridgeSet),
		outgoing:        make(bridgeSet),
		simpleKinematic: make(map[core.EntityID]Entity),
	}
}

// OnCollision registers the subscriber for entity-entity collisions.
func (s *Simulation) OnCollision(fn func(CollisionEvent)) {
	s.onCollision = fn
}

// Bridge returns the motion state of an entity, if it has one.
func (s *Simulation) Bridge(id core.EntityID) (*motion.Bridge, bool) {
	b, ok := s.bridges[id]
	return b, ok
}

func (s *Simulation) NumPhysicalObjects() int { return len(s.physicalObjects) }
func (s *Simulation) NumOutgoing() int        { return len(s.outgoing) }
func (s *Simulation) NumPendingAdds() int     { return len(s.pendingAdds) }

// IsSimpleKinematic reports whether id is stepped outside the engine.
func (s *Simulation) IsSimpleKinematic(id core.EntityID) bool {
	_, ok := s.simpleKinematic[id]
	return ok
}

// AddEntity starts tracking e.
func (s *Simulation) AddEntity(e Entity) {
	if e.ShouldBePhysical() {
		if _, ok := s.bridges[e.ID()]; !ok {
			s.pendingAdds[e.ID()] = e
		}
	} else if e.IsMoving() {
		s.simpleKinematic[e.ID()] = e
	}
}

// RemoveEntity stops tracking e. Its bridge is detached at once and its
// body is handed out by the next ObjectsToDelete.
func (s *Simulation) RemoveEntity(e Entity) {
	if b, ok := s.bridges[e.ID()]; ok {
		b.Detach()
		delete(s.bridges, e.ID())
		s.pendingRemoves[b] = struct{}{}
		delete(s.outgoing, b)
	}
	delete(s.pendingAdds, e.ID())
	delete(s.simpleKinematic, e.ID())
}

// ChangeEntity queues changes coming from outside the engine.
func (s *Simulation) ChangeEntity(e Entity) {
	id := e.ID()
	if b, ok := s.bridges[id]; ok {
		if !e.ShouldBePhysical() {
			delete(s.pendingChanges, b)
			delete(s.physicalObjects, b)
			b.Detach()
			delete(s.bridges, id)
			s.pendingRemoves[b] = struct{}{}
			delete(s.outgoing, b)
			if e.IsMoving() {
				s.simpleKinematic[id] = e
			}
		} else {
			s.pendingChanges[b] = struct{}{}
		}
		return
	}

	switch {
	case e.ShouldBePhysical():
		s.pendingAdds[id] = e
		delete(s.simpleKinematic, id)
	case e.IsMoving():
		s.simpleKinematic[id] = e
	default:
		delete(s.simpleKinematic, id)
	}
}

// CollectDirtyEntities queues every physical entity that raised dirty flags
// on its own, e.g. a kinematic entity coming to rest.
func (s *Simulation) CollectDirtyEntities() {
	for b := range s.physicalObjects {
		if e := b.Entity(); e != nil && e.DirtyFlags() != 0 {
			s.pendingChanges[b] = struct{}{}
		}
	}
}

// ClearEntities detaches every bridge and returns them all for deletion.
func (s *Simulation) ClearEntities() []*motion.Bridge {
	removed := make([]*motion.Bridge, 0, len(s.physicalObjects)+len(s.pendingRemoves))
	for b := range s.physicalObjects {
		b.Detach()
		removed = append(removed, b)
	}
	for b := range s.pendingRemoves {
		if _, ok := s.physicalObjects[b]; !ok {
			removed = append(removed, b)
		}
	}
	for _, b := range removed {
		s.releaseShape(b)
	}

	s.bridges = make(map[core.EntityID]*motion.Bridge)
	s.physicalObjects = make(bridgeSet)
	s.pendingRemoves = make(bridgeSet)
	s.pendingAdds = make(map[core.EntityID]Entity)
	s.pendingChanges = make(bridgeSet)
	s.outgoing = make(bridgeSet)
	s.simpleKinematic = make(map[core.EntityID]Entity)
	return removed
}

// ObjectsToDelete returns the bridges whose bodies must leave the engine.
func (s *Simulation) ObjectsToDelete() []*motion.Bridge {
	removed := make([]*motion.Bridge, 0, len(s.pendingRemoves))
	for b := range s.pendingRemoves {
		delete(s.pendingChanges, b)
		delete(s.physicalObjects, b)
		if e := b.Entity(); e != nil {
			delete(s.pendingAdds, e.ID())
			b.Detach()
		}
		s.releaseShape(b)
		removed = append(removed, b)
	}
	s.pendingRemoves = make(bridgeSet)
	return removed
}

// ObjectsToAdd builds shapes and bridges for pending entities that are
// ready. Entities whose shape cannot be built yet stay pending.
func (s *Simulation) ObjectsToAdd() []*motion.Bridge {
	var added []*motion.Bridge
	for id, e := range s.pendingAdds {
		if !e.ShouldBePhysical() {
			delete(s.pendingAdds, id)
			if e.IsMoving() {
				s.simpleKinematic[id] = e
			}
			continue
		}
		if !e.IsReadyToComputeShape() {
			continue
		}
		cs := s.shapes.GetShape(e.ShapeDescriptor())
		if cs == nil {
			s.logger.Warn("failed to build collision shape", "entity", id, "name", e.Name())
			continue
		}
		b := motion.NewBridge(cs, e, s.world, motion.WithLogger(s.logger), motion.WithClock(s.now))
		s.bridges[id] = b
		s.physicalObjects[b] = struct{}{}
		added = append(added, b)
		delete(s.pendingAdds, id)
	}
	sortBridges(added)
	return added
}

// ObjectsToChange returns and clears the pending changes.
func (s *Simulation) ObjectsToChange() []*motion.Bridge {
	changed := make([]*motion.Bridge, 0, len(s.pendingChanges))
	for b := range s.pendingChanges {
		changed = append(changed, b)
	}
	s.pendingChanges = make(bridgeSet)
	sortBridges(changed)
	return changed
}

// ApplyChanges feeds the dirty flags of each changed bridge into it.
// Bridges that need rebuilding are returned for reinsertion.
func (s *Simulation) ApplyChanges(changed []*motion.Bridge, session core.SessionID) []*motion.Bridge {
	var reinsert []*motion.Bridge
	for _, b := range changed {
		flags := b.IncomingDirtyFlags()
		switch {
		case flags.Any(core.DirtyHardFlags):
			b.HandleHardAndEasyChanges(flags, session, s.shapes)
			reinsert = append(reinsert, b)
		case flags != 0:
			b.HandleEasyChanges(flags, session)
		}
	}
	return reinsert
}

// HandleOutgoingChanges collects ownership candidates among the motion
// states the engine changed and, once per new substep count, sends the
// updates that are due.
func (s *Simulation) HandleOutgoingChanges(states []physics.MotionState, session core.SessionID) OutgoingResult {
	for _, state := range states {
		b, ok := state.(*motion.Bridge)
		if !ok || b.Kind() != motion.KindEntity || b.Entity() == nil {
			continue
		}
		if b.IsCandidateForOwnership(session) {
			s.outgoing[b] = struct{}{}
		}
	}

	var result OutgoingResult
	numSubsteps := s.world.SimulationStep()
	if s.lastStepSendPackets == numSubsteps {
		return result
	}
	s.lastStepSendPackets = numSubsteps

	if session == core.NoSession {
		s.outgoing = make(bridgeSet)
		return result
	}

	candidates := make([]*motion.Bridge, 0, len(s.outgoing))
	for b := range s.outgoing {
		candidates = append(candidates, b)
	}
	sortBridges(candidates)

	for _, b := range candidates {
		if !b.IsCandidateForOwnership(session) {
			delete(s.outgoing, b)
			continue
		}
		result.Candidates++
		if b.ShouldSendUpdate(numSubsteps, session) {
			b.SendUpdate(s.sender, session, numSubsteps)
			result.Sent++
		}
	}
	return result
}

// HandleCollisionEvents forwards contacts between two entities to the
// subscriber.
func (s *Simulation) HandleCollisionEvents(events []engine.Collision) {
	if s.onCollision == nil {
		return
	}
	for _, c := range events {
		a, okA := c.A.(*motion.Bridge)
		b, okB := c.B.(*motion.Bridge)
		if !okA || !okB || a.Entity() == nil || b.Entity() == nil {
			continue
		}
		s.onCollision(CollisionEvent{
			Type:  c.Type,
			A:     a.Entity().ID(),
			B:     b.Entity().ID(),
			Point: c.Point,
		})
	}
}

// UpdateEntities steps non-physical moving entities. Entities that stop
// are dropped from the kinematic set.
func (s *Simulation) UpdateEntities(dt float64) {
	now := s.now()
	for id, e := range s.simpleKinematic {
		e.Update(dt, now)
		if !e.IsMoving() {
			delete(s.simpleKinematic, id)
		}
	}
}

func (s *Simulation) releaseShape(b *motion.Bridge) {
	if b.Shape() != nil {
		s.shapes.ReleaseShape(b.Shape())
	}
}

// sortBridges orders by entity ID so passes are deterministic. Detached
// bridges go last.
func sortBridges(bridges []*motion.Bridge) {
	slices.SortFunc(bridges, func(a, b *motion.Bridge) int {
		ea, eb := a.Entity(), b.Entity()
		switch {
		case ea == nil && eb == nil:
			return 0
		case ea == nil:
			return 1
		case eb == nil:
			return -1
		}
		ia, ib := ea.ID(), eb.ID()
		return bytes.Compare(ia[:], ib[:])
	})
}
