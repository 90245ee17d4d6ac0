// Package session tracks the local participant's current session.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openworld/physync/pkg/core"
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session core.Session
	ended   time.Time
}

// NewContext creates a new Context with no active session
func NewContext() *Context {
	return &Context{
		session: core.Session{Name: "No session started"},
	}
}

// GetSession returns a copy of the current session
func (c *Context) GetSession() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession starts s
func (c *Context) SetSession(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	c.session = s
	c.ended = time.Time{}
}

// End marks the current session as finished. The session stays readable.
func (c *Context) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended.IsZero() {
		c.ended = time.Now()
	}
}

// Active reports whether a session with an ID is running.
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.ID != core.NoSession && c.ended.IsZero()
}

// Duration is how long the session ran, or has been running.
func (c *Context) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.StartTime.IsZero() {
		return 0
	}
	if !c.ended.IsZero() {
		return c.ended.Sub(c.session.StartTime)
	}
	return time.Since(c.session.StartTime)
}

// LogAttrs returns the attributes the logging context handler adds to
// every record.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.ID == core.NoSession {
		return nil
	}
	return []slog.Attr{
		slog.String("session_id", c.session.ID.String()),
		slog.String("session_name", c.session.Name),
	}
}
