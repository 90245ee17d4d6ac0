// Package v1 contains the v1 journal format for exported physync sessions.
package v1

// FormatVersion is written into every v1 journal.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int        `json:"formatVersion"`
	SessionID     string     `json:"sessionId"`
	SessionName   string     `json:"sessionName"`
	StartTime     string     `json:"startTime"`
	EndTime       string     `json:"endTime,omitempty"`
	FrameRate     float64    `json:"frameRate"`
	WorldOffset   [3]float64 `json:"worldOffset"`
	EndStep       uint32     `json:"endStep"`
	Entities      []Entity   `json:"entities"`
	Ownership     [][]any    `json:"ownership"`
	Stats         [][]any    `json:"stats"`
}

// Entity is one entity's lifetime plus every edit sent for it.
//
// Each edit is encoded as [step, millisSinceStart, properties].
type Entity struct {
	ID            string  `json:"id"`
	Name          string  `json:"name,omitempty"`
	Shape         string  `json:"shape"`
	Mass          float64 `json:"mass"`
	Dynamic       bool    `json:"dynamic"`
	Collisionless bool    `json:"collisionless,omitempty"`
	AddedAt       int64   `json:"addedAt"`
	RemovedAt     int64   `json:"removedAt"`
	Edits         [][]any `json:"edits"`
}
