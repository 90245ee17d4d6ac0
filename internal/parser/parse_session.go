package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/pkg/core"
)

type sessionPayload struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	FrameRate   float64    `json:"frameRate"`
	WorldOffset mgl64.Vec3 `json:"worldOffset"`
}

// ParseSession parses a session:start notification.
// [0] session JSON
// Returns the session only. NO loop changes, NO storage calls.
func (p *Parser) ParseSession(data []string) (core.Session, error) {
	var session core.Session
	if err := requireArgs(data, 1, "session:start"); err != nil {
		return session, err
	}
	cleanArgs(data)

	var payload sessionPayload
	if err := json.Unmarshal([]byte(data[0]), &payload); err != nil {
		return session, fmt.Errorf("error unmarshalling session: %w", err)
	}

	id, err := core.ParseSessionID(payload.ID)
	if err != nil {
		return session, err
	}
	if payload.FrameRate < 0 {
		return session, fmt.Errorf("negative frame rate %v", payload.FrameRate)
	}

	session.ID = id
	session.Name = payload.Name
	session.FrameRate = payload.FrameRate
	session.WorldOffset = payload.WorldOffset
	session.StartTime = time.Now()

	p.logger.Debug("Parsed session data",
		"id", session.ID,
		"name", session.Name)
	return session, nil
}
