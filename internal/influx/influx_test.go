package influx

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/pkg/core"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     "1",
		Protocol: "http",
		Org:      "physync-metrics",
		Bucket:   "sync",
	}
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	err := m.Connect(context.Background(), config.InfluxConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSyncStatsPoint(t *testing.T) {
	s := core.Session{ID: core.NewSessionID(), Name: "alice"}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := SyncStatsPoint(s, core.SyncStats{Time: ts, Frame: 10, Step: 40, Bodies: 3, Sent: 2, Dropped: 1})

	assert.Equal(t, MeasurementSyncStats, p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, s.ID.String(), tags["session"])
	assert.Equal(t, "alice", tags["name"])

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(10), fields["frame"])
	assert.Equal(t, int64(2), fields["sent"])
	assert.Equal(t, int64(1), fields["dropped"])
}

func TestRecordSyncStats_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx, unreachable()))
	assert.False(t, m.IsValid)

	m.SetSession(core.Session{ID: core.NewSessionID(), Name: "bob"})
	m.RecordSyncStats(core.SyncStats{Frame: 1, Step: 4, Bodies: 2})
	m.RecordSyncStats(core.SyncStats{Frame: 2, Step: 8, Bodies: 2})
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.Contains(t, string(data), MeasurementSyncStats+",name=bob")
	assert.Contains(t, string(data), "frame=2i")
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(SyncStatsPoint(core.Session{}, core.SyncStats{}))
	assert.Error(t, err)
}
