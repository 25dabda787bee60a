package sqlite

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/grid"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
	"github.com/banshee-data/sonarmap/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sonarmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Migrates(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	require.NoError(t, s.MigrateUp())
}

func TestRuns(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	start := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	s.SetClock(clock)

	settings := config.DefaultSettings()
	id, err := s.CreateRun(settings)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, settings.GridName, run.GridName)
	assert.True(t, strings.Contains(run.Settings, "CellSize 100\n"), run.Settings)
	assert.True(t, start.Equal(run.StartedAt))
	assert.Nil(t, run.FinishedAt)

	clock.Advance(90 * time.Second)
	require.NoError(t, s.FinishRun(id))
	run, err = s.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 90*time.Second, run.FinishedAt.Sub(run.StartedAt))

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun("missing"), ErrNotFound)
}

func TestSweeps(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id, err := s.CreateRun(config.DefaultSettings())
	require.NoError(t, err)

	var ranges [sonar.NumSonars]int
	for i := range ranges {
		ranges[i] = 100 * (i + 1)
	}
	want := []sonar.Reading{
		sonar.NewReading(geometry.P(0, 0, 0), ranges),
		sonar.NewReading(geometry.P(-150, 2400, 272.5), ranges),
	}
	// Insert out of order; listing follows seq.
	require.NoError(t, s.RecordSweep(id, 1, want[1]))
	require.NoError(t, s.RecordSweep(id, 0, want[0]))
	assert.Error(t, s.RecordSweep(id, 0, want[0]), "duplicate seq")
	assert.Error(t, s.RecordSweep("no-such-run", 0, want[0]), "foreign key")

	got, err := s.ListSweeps(id)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListSweeps mismatch (-want +got):\n%s", diff)
	}

	none, err := s.ListSweeps("other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshots(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	runID, err := s.CreateRun(config.DefaultSettings())
	require.NoError(t, err)

	g := grid.MustCartesian(5, 3, geometry.C(10, -4), 0.5)
	require.NoError(t, g.Set(10, -4, 0.9))
	require.NoError(t, g.Set(12, -3, 0.1))

	snapID, err := s.SaveSnapshot(runID, "final", g)
	require.NoError(t, err)

	snap, err := s.LoadSnapshot(snapID)
	require.NoError(t, err)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, "final", snap.Name)
	assert.Equal(t, g.Bound(), snap.Grid.Bound())
	assert.Equal(t, 0.9, snap.Grid.Value(10, -4))
	assert.Equal(t, 0.1, snap.Grid.Value(12, -3))
	assert.Equal(t, 0.5, snap.Grid.Value(11, -4))

	ids, err := s.ListSnapshots(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{snapID}, ids)

	_, err = s.LoadSnapshot("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryOnBusy(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := &Store{clock: clock}

	calls := 0
	err := s.retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}, clock.Sleeps())

	other := errors.New("constraint failed")
	calls = 0
	err = s.retryOnBusy(func() error { calls++; return other })
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls, "only busy errors are retried")
}
