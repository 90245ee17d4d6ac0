// Package dispatcher routes notifications from the entity server to the
// handlers registered for them.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownCommand is returned by Dispatch for commands nobody handles.
var ErrUnknownCommand = errors.New("unknown command")

// ErrQueueFull is returned when a buffered handler cannot take the event.
var ErrQueueFull = errors.New("queue full")

// Event is one server notification, e.g. "entity:edit" with a JSON
// property set as its first argument.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  instruments

	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool

	inflightMu sync.Mutex
	inflight   int
	idle       *sync.Cond
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}
	d.idle = sync.NewCond(&d.inflightMu)

	ins, err := newInstruments(d.queueLengths)
	if err != nil {
		return nil, err
	}
	d.metrics = ins
	return d, nil
}

func (d *Dispatcher) queueLengths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.buffers))
	for cmd, buf := range d.buffers {
		out[cmd] = len(buf)
	}
	return out
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Drain waits until every event accepted by a buffered handler so far has
// been processed.
func (d *Dispatcher) Drain() {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}

func (d *Dispatcher) track(delta int) {
	d.inflightMu.Lock()
	d.inflight += delta
	if d.inflight == 0 {
		d.idle.Broadcast()
	}
	d.inflightMu.Unlock()
}

// Close stops the buffered handlers after they drain. Dispatching to a
// buffered handler afterwards fails.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.Drain()
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	go func() {
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.metrics.add(d.metrics.failed, command)
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.metrics.add(d.metrics.processed, command)
			d.track(-1)
		}
	}()

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("dispatcher closed: %s", command)
		}

		d.track(1)
		if blocking {
			buffer <- e
			return "queued", nil
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.track(-1)
			d.metrics.add(d.metrics.dropped, command)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
