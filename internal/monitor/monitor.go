package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openworld/physync/internal/editqueue"
	"github.com/openworld/physync/internal/session"
	"github.com/openworld/physync/pkg/core"
)

// StatusFileName is written inside Dependencies.StatusDir.
const StatusFileName = "status.txt"

const defaultInterval = time.Second

// StorageStatus is implemented by storage backends that buffer writes.
type StorageStatus interface {
	QueueLengths() map[string]int
	GetLastWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger    *slog.Logger
	Session   *session.Context
	SyncStats func() core.SyncStats
	EditQueue func() editqueue.Stats
	Storage   StorageStatus // optional
	StatusDir string
	Interval  time.Duration
}

// Status is one snapshot of the running process.
type Status struct {
	Time                time.Time       `json:"time"`
	SessionID           string          `json:"sessionId"`
	SessionName         string          `json:"sessionName"`
	LastPass            core.SyncStats  `json:"lastPass"`
	EditQueue           editqueue.Stats `json:"editQueue"`
	StorageQueues       map[string]int  `json:"storageQueues,omitempty"`
	LastWriteDurationMs float32         `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the status snapshot and its rendering as the
// sections selected by the flags.
func (s *Service) GetProgramStatus(lastPass, queues, lastWrite bool) (output []string, status Status) {
	status.Time = time.Now()
	if s.deps.Session != nil {
		sess := s.deps.Session.GetSession()
		status.SessionID = sess.ID.String()
		status.SessionName = sess.Name
	}
	if s.deps.SyncStats != nil {
		status.LastPass = s.deps.SyncStats()
	}
	if s.deps.EditQueue != nil {
		status.EditQueue = s.deps.EditQueue()
	}
	if s.deps.Storage != nil {
		status.StorageQueues = s.deps.Storage.QueueLengths()
		status.LastWriteDurationMs = float32(s.deps.Storage.GetLastWriteDuration().Milliseconds())
	}

	if lastPass {
		output = append(output, render(status.LastPass))
	}
	if queues {
		output = append(output, render(map[string]any{
			"editQueue":     status.EditQueue,
			"storageQueues": status.StorageQueues,
		}))
	}
	if lastWrite {
		output = append(output, render(status.LastWriteDurationMs))
	}
	return output, status
}

func render(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, StatusFileName))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("error creating status file: %w", err)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer statusFile.Close()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if s.deps.Session != nil && !s.deps.Session.Active() {
					continue
				}
				lines, _ := s.GetProgramStatus(true, true, true)
				if err := writeStatus(statusFile, lines); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

func writeStatus(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
