// Package scenario loads YAML descriptions of a harness run and turns them
// into the server notifications the worker consumes.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/openworld/physync/internal/dispatcher"
	"github.com/openworld/physync/internal/parser"
	"github.com/openworld/physync/internal/worker"
	"github.com/openworld/physync/pkg/core"
)

// CmdLogWrite asks the harness to write a log line. Args are component,
// message and level.
const CmdLogWrite = "log:write"

// OwnerSelf names the local session as an entity's simulator.
const OwnerSelf = "self"

// Event types accepted in the events list.
const (
	EventAdd    = "add"
	EventEdit   = "edit"
	EventDelete = "delete"
	EventBump   = "bump"
	EventEnd    = "end"
	EventLog    = "log"
)

// Scenario is one harness run.
type Scenario struct {
	Session  SessionSpec  `yaml:"session"`
	Frames   uint64       `yaml:"frames"`
	Entities []EntitySpec `yaml:"entities"`
	Events   []EventSpec  `yaml:"events"`

	ids map[string]core.EntityID
}

type SessionSpec struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	FrameRate   float64    `yaml:"frameRate"`
	WorldOffset [3]float64 `yaml:"worldOffset"`
}

// PropertySpec is the YAML form of a sparse property set.
type PropertySpec struct {
	Position        *[3]float64 `yaml:"position"`
	Rotation        *[4]float64 `yaml:"rotation"` // x, y, z, w
	Velocity        *[3]float64 `yaml:"velocity"`
	AngularVelocity *[3]float64 `yaml:"angularVelocity"`
	Acceleration    *[3]float64 `yaml:"acceleration"`
	Gravity         *[3]float64 `yaml:"gravity"`
	LinearDamping   *float64    `yaml:"linearDamping"`
	AngularDamping  *float64    `yaml:"angularDamping"`
	// Owner is a session id, "self" or "none".
	Owner *string `yaml:"owner"`
}

type EntitySpec struct {
	parser.EntitySpec `yaml:",inline"`
	PropertySpec      `yaml:",inline"`
}

// EventSpec is a server notification scripted at a frame.
type EventSpec struct {
	Frame  uint64 `yaml:"frame"`
	Type   string `yaml:"type"`
	Entity string `yaml:"entity"`
	Step   uint32 `yaml:"step"`

	Properties PropertySpec `yaml:"properties"`
	Add        *EntitySpec  `yaml:"add"`

	Message string `yaml:"message"`
	Level   string `yaml:"level"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario. Entities without an id get a
// fresh one so events can refer to them by name.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error decoding scenario: %w", err)
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) prepare() error {
	if s.Frames == 0 {
		return errors.New("scenario needs a positive frame count")
	}
	if s.Session.ID == "" {
		s.Session.ID = core.NewSessionID().String()
	}
	if _, err := core.ParseSessionID(s.Session.ID); err != nil {
		return err
	}

	s.ids = make(map[string]core.EntityID)
	register := func(e *EntitySpec) error {
		if e.Name == "" {
			return errors.New("scenario entity needs a name")
		}
		if _, dup := s.ids[e.Name]; dup {
			return fmt.Errorf("duplicate entity name %q", e.Name)
		}
		if e.ID == "" {
			e.ID = core.NewEntityID().String()
		}
		id, err := core.ParseEntityID(e.ID)
		if err != nil {
			return err
		}
		if _, err := e.Shape.Descriptor(); err != nil {
			return fmt.Errorf("entity %q: %w", e.Name, err)
		}
		s.ids[e.Name] = id
		return nil
	}

	for i := range s.Entities {
		if err := register(&s.Entities[i]); err != nil {
			return err
		}
	}

	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].Frame < s.Events[j].Frame })
	for i := range s.Events {
		ev := &s.Events[i]
		switch ev.Type {
		case EventAdd:
			if ev.Add == nil {
				return fmt.Errorf("event %d: add without entity", i)
			}
			if err := register(ev.Add); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		case EventEdit, EventDelete, EventBump:
			if ev.Type == EventEdit && ev.Properties == (PropertySpec{}) {
				return fmt.Errorf("event %d: edit without properties", i)
			}
			if _, ok := s.ids[ev.Entity]; !ok {
				return fmt.Errorf("event %d: unknown entity %q", i, ev.Entity)
			}
		case EventEnd, EventLog:
		default:
			return fmt.Errorf("event %d: unknown type %q", i, ev.Type)
		}
	}
	return nil
}

// EntityID returns the id assigned to a named entity.
func (s *Scenario) EntityID(name string) (core.EntityID, bool) {
	id, ok := s.ids[name]
	return id, ok
}

// SessionID returns the local session id.
func (s *Scenario) SessionID() core.SessionID {
	id, _ := core.ParseSessionID(s.Session.ID)
	return id
}

// Setup returns the session start followed by the initial entity adds.
func (s *Scenario) Setup(now time.Time) ([]dispatcher.Event, error) {
	session, err := json.Marshal(map[string]any{
		"id":          s.Session.ID,
		"name":        s.Session.Name,
		"frameRate":   s.Session.FrameRate,
		"worldOffset": s.Session.WorldOffset,
	})
	if err != nil {
		return nil, err
	}

	events := []dispatcher.Event{{Command: worker.CmdSessionStart, Args: []string{string(session)}, Timestamp: now}}
	for _, e := range s.Entities {
		ev, err := s.addEvent(e, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventsAt returns the notifications scripted for frame.
func (s *Scenario) EventsAt(frame uint64, now time.Time) ([]dispatcher.Event, error) {
	i := sort.Search(len(s.Events), func(i int) bool { return s.Events[i].Frame >= frame })

	var out []dispatcher.Event
	for ; i < len(s.Events) && s.Events[i].Frame == frame; i++ {
		ev, err := s.toEvent(s.Events[i], now)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Scenario) toEvent(ev EventSpec, now time.Time) (dispatcher.Event, error) {
	switch ev.Type {
	case EventAdd:
		return s.addEvent(*ev.Add, now)
	case EventEdit:
		props, err := ev.Properties.properties(s.SessionID())
		if err != nil {
			return dispatcher.Event{}, err
		}
		body, err := json.Marshal(props)
		if err != nil {
			return dispatcher.Event{}, err
		}
		return dispatcher.Event{
			Command:   worker.CmdEntityEdit,
			Args:      []string{s.ids[ev.Entity].String(), string(body), fmt.Sprint(ev.Step)},
			Timestamp: now,
		}, nil
	case EventDelete:
		return dispatcher.Event{Command: worker.CmdEntityDelete, Args: []string{s.ids[ev.Entity].String()}, Timestamp: now}, nil
	case EventBump:
		return dispatcher.Event{Command: worker.CmdEntityBump, Args: []string{s.ids[ev.Entity].String()}, Timestamp: now}, nil
	case EventEnd:
		return dispatcher.Event{Command: worker.CmdSessionEnd, Timestamp: now}, nil
	case EventLog:
		return dispatcher.Event{Command: CmdLogWrite, Args: []string{"scenario", ev.Message, ev.Level}, Timestamp: now}, nil
	}
	return dispatcher.Event{}, fmt.Errorf("unknown event type %q", ev.Type)
}

func (s *Scenario) addEvent(e EntitySpec, now time.Time) (dispatcher.Event, error) {
	props, err := e.PropertySpec.properties(s.SessionID())
	if err != nil {
		return dispatcher.Event{}, fmt.Errorf("entity %q: %w", e.Name, err)
	}
	spec := e.EntitySpec
	spec.Properties = props

	body, err := json.Marshal(spec)
	if err != nil {
		return dispatcher.Event{}, err
	}
	return dispatcher.Event{Command: worker.CmdEntityAdd, Args: []string{string(body)}, Timestamp: now}, nil
}

func (p PropertySpec) properties(self core.SessionID) (core.EntityProperties, error) {
	var props core.EntityProperties
	vec := func(v *[3]float64, set func(mgl64.Vec3)) {
		if v != nil {
			set(mgl64.Vec3(*v))
		}
	}
	vec(p.Position, props.SetPosition)
	vec(p.Velocity, props.SetVelocity)
	vec(p.AngularVelocity, props.SetAngularVelocity)
	vec(p.Acceleration, props.SetAcceleration)
	vec(p.Gravity, props.SetGravity)

	if p.Rotation != nil {
		r := *p.Rotation
		props.SetRotation(mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize())
	}
	if p.LinearDamping != nil {
		props.SetLinearDamping(*p.LinearDamping)
	}
	if p.AngularDamping != nil {
		props.SetAngularDamping(*p.AngularDamping)
	}

	if p.Owner != nil {
		switch *p.Owner {
		case OwnerSelf:
			props.SetSimulatorID(self)
		case "none", "":
			props.SetSimulatorID(core.NoSession)
		default:
			id, err := core.ParseSessionID(*p.Owner)
			if err != nil {
				return props, err
			}
			props.SetSimulatorID(id)
		}
	}
	return props, nil
}
