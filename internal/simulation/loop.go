package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/openworld/physync/internal/editqueue"
	"github.com/openworld/physync/internal/engine"
	"github.com/openworld/physync/pkg/core"
)

// EditQueue is the part of the edit queue the loop drives.
type EditQueue interface {
	Flush(ctx context.Context) (int, error)
	Stats() editqueue.Stats
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrameRate sets how many frames per second the loop runs. Each frame
// advances the engine by 1/hz seconds.
func WithFrameRate(hz float64) LoopOption {
	return func(l *Loop) {
		if hz > 0 {
			l.frameDt = 1 / hz
		}
	}
}

// WithRealtime paces Run with a ticker instead of running frames back to
// back.
func WithRealtime(realtime bool) LoopOption {
	return func(l *Loop) {
		l.realtime = realtime
	}
}

// WithStatsHook registers fn to receive the stats of every frame.
func WithStatsHook(fn func(core.SyncStats)) LoopOption {
	return func(l *Loop) {
		l.statsHooks = append(l.statsHooks, fn)
	}
}

// WithFrameHook registers fn to run before every frame, outside the lock.
// Hooks may call Do.
func WithFrameHook(fn func(frame uint64)) LoopOption {
	return func(l *Loop) {
		l.frameHooks = append(l.frameHooks, fn)
	}
}

func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop owns the lock around the simulation and the engine and runs one
// step and sync cycle per frame.
type Loop struct {
	mu      sync.Mutex
	world   *engine.World
	sim     *Simulation
	edits   EditQueue
	session core.Session

	frameDt  float64
	realtime bool
	frame    uint64
	last     core.SyncStats
	dropped  uint64

	statsHooks []func(core.SyncStats)
	frameHooks []func(uint64)
	logger     *slog.Logger

	framesCounter metric.Int64Counter
	sentCounter   metric.Int64Counter
	frameDuration metric.Float64Histogram
}

func NewLoop(world *engine.World, sim *Simulation, edits EditQueue, session core.Session, opts ...LoopOption) (*Loop, error) {
	l := &Loop{
		world:   world,
		sim:     sim,
		edits:   edits,
		session: session,
		frameDt: 1.0 / 60,
		logger:  slog.Default(),
	}
	if session.FrameRate > 0 {
		l.frameDt = 1 / session.FrameRate
	}
	for _, opt := range opts {
		opt(l)
	}

	m := meter()
	var err error
	l.framesCounter, err = m.Int64Counter(
		"simulation.frames",
		metric.WithDescription("Total sync loop frames"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	l.sentCounter, err = m.Int64Counter(
		"simulation.updates.sent",
		metric.WithDescription("Total entity updates sent by the outgoing pass"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}
	l.frameDuration, err = m.Float64Histogram(
		"simulation.frame.duration",
		metric.WithDescription("Time spent stepping and syncing one frame"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame duration histogram: %w", err)
	}
	return l, nil
}

// Do runs fn with the loop lock held. Inbound server notifications go
// through here.
func (l *Loop) Do(fn func(*Simulation)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.sim)
}

// SetSession replaces the local session. A session with a nil ID stops
// outgoing updates.
func (l *Loop) SetSession(s core.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = s
}

func (l *Loop) Session() core.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Frame runs one pass: inbound changes, engine step, outgoing pass, then
// a flush of the edit queue.
func (l *Loop) Frame(ctx context.Context) (core.SyncStats, error) {
	l.mu.Lock()
	next := l.frame + 1
	l.mu.Unlock()
	for _, hook := range l.frameHooks {
		hook(next)
	}

	start := time.Now()
	l.mu.Lock()
	sessionID := l.session.ID
	for _, b := range l.sim.ObjectsToDelete() {
		l.world.RemoveObject(b)
	}
	for _, b := range l.sim.ObjectsToAdd() {
		l.world.AddObject(b)
	}
	l.sim.CollectDirtyEntities()
	for _, b := range l.sim.ApplyChanges(l.sim.ObjectsToChange(), sessionID) {
		l.world.ReinsertObject(b)
	}

	l.sim.UpdateEntities(l.frameDt)
	l.world.StepSimulation(l.frameDt)
	l.sim.HandleCollisionEvents(l.world.Collisions())
	result := l.sim.HandleOutgoingChanges(l.world.ChangedMotionStates(), sessionID)

	l.frame = next
	stats := core.SyncStats{
		Time:       start,
		Frame:      next,
		Step:       l.world.SimulationStep(),
		Bodies:     l.world.NumBodies(),
		Candidates: result.Candidates,
		Sent:       result.Sent,
	}
	l.mu.Unlock()

	_, flushErr := l.edits.Flush(ctx)

	qs := l.edits.Stats()
	stats.Queued = qs.Pending

	l.mu.Lock()
	stats.Dropped = int(qs.Dropped - l.dropped)
	l.dropped = qs.Dropped
	l.last = stats
	l.mu.Unlock()

	l.framesCounter.Add(ctx, 1)
	if result.Sent > 0 {
		l.sentCounter.Add(ctx, int64(result.Sent))
	}
	l.frameDuration.Record(ctx, time.Since(start).Seconds())

	for _, hook := range l.statsHooks {
		hook(stats)
	}
	if flushErr != nil {
		return stats, fmt.Errorf("frame %d: %w", next, flushErr)
	}
	return stats, nil
}

// Run runs frames until ctx is done or, when frames > 0, that many frames
// have run. Flush errors are logged and the loop carries on; the edits stay
// queued for the next frame.
func (l *Loop) Run(ctx context.Context, frames uint64) error {
	var tick <-chan time.Time
	if l.realtime {
		ticker := time.NewTicker(time.Duration(l.frameDt * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := uint64(0); frames == 0 || n < frames; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := l.Frame(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			l.logger.Warn("sync frame failed", "error", err)
		}
	}
	return nil
}

// Stats returns the stats of the last frame.
func (l *Loop) Stats() core.SyncStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// ClearEntities detaches every entity and removes their bodies from the
// engine.
func (l *Loop) ClearEntities() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.sim.ClearEntities() {
		l.world.RemoveObject(b)
	}
}

// Shutdown removes every body from the engine and flushes what is left in
// the edit queue.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.ClearEntities()

	if _, err := l.edits.Flush(ctx); err != nil {
		return fmt.Errorf("flushing edits on shutdown: %w", err)
	}
	return nil
}
