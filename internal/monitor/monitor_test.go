package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/internal/editqueue"
	"github.com/openworld/physync/internal/session"
	"github.com/openworld/physync/pkg/core"
)

type fakeStorage struct{}

func (fakeStorage) QueueLengths() map[string]int {
	return map[string]int{"entity_edits": 7}
}

func (fakeStorage) GetLastWriteDuration() time.Duration {
	return 12 * time.Millisecond
}

func newTestService(t *testing.T, dir string) (*Service, *session.Context) {
	t.Helper()
	sc := session.NewContext()
	return NewService(Dependencies{
		Session:   sc,
		SyncStats: func() core.SyncStats { return core.SyncStats{Frame: 42, Bodies: 3} },
		EditQueue: func() editqueue.Stats { return editqueue.Stats{Pending: 2, Dropped: 1} },
		Storage:   fakeStorage{},
		StatusDir: dir,
		Interval:  10 * time.Millisecond,
	}), sc
}

func TestGetProgramStatus(t *testing.T) {
	s, sc := newTestService(t, t.TempDir())
	sc.SetSession(core.Session{ID: core.NewSessionID(), Name: "alice"})

	lines, status := s.GetProgramStatus(true, true, true)

	require.Len(t, lines, 3)
	assert.Equal(t, "alice", status.SessionName)
	assert.Equal(t, uint64(42), status.LastPass.Frame)
	assert.Equal(t, 2, status.EditQueue.Pending)
	assert.Equal(t, 7, status.StorageQueues["entity_edits"])
	assert.Equal(t, float32(12), status.LastWriteDurationMs)
	assert.Contains(t, lines[1], `"entity_edits": 7`)
	assert.Equal(t, "12", lines[2])
}

func TestGetProgramStatus_Sections(t *testing.T) {
	s := NewService(Dependencies{})

	lines, status := s.GetProgramStatus(false, true, false)
	assert.Len(t, lines, 1)
	assert.Nil(t, status.StorageQueues)
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	s, sc := newTestService(t, dir)
	sc.SetSession(core.Session{ID: core.NewSessionID(), Name: "bob"})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(), "second start is a no-op")

	path := filepath.Join(dir, StatusFileName)
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Frame": 42`)
}

func TestStart_SkipsWithoutSession(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestService(t, dir)

	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	data, err := os.ReadFile(filepath.Join(dir, StatusFileName))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStart_BadDir(t *testing.T) {
	s := NewService(Dependencies{StatusDir: filepath.Join(t.TempDir(), "missing", "dir")})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
