package implementation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
)

func newTestFileRepo(t *testing.T, maxRecords int) *FileReadingRepository {
	t.Helper()
	return NewFileReadingRepository(filepath.Join(t.TempDir(), "readings.json"), maxRecords, 256)
}

func reading(deviceID string, ts time.Time, ph float64) *agsmodels.SensorReading {
	r := &agsmodels.SensorReading{DeviceID: deviceID, Timestamp: ts}
	r.SetValue(agsmodels.MetricPH, ph)
	return r
}

func TestFileRepoSaveAndLatest(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	id1, err := repo.Save(ctx, reading("esp32-01", base, 6.1))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id1, "f-"))

	_, err = repo.Save(ctx, reading("esp32-01", base.Add(time.Minute), 6.4))
	require.NoError(t, err)

	latest, err := repo.Latest(ctx, "esp32-01")
	require.NoError(t, err)
	assert.Equal(t, 6.4, *latest.PH)
	assert.Equal(t, base.Add(time.Minute), latest.Timestamp)
}

func TestFileRepoLatestNotFound(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	_, err := repo.Latest(context.Background(), "no-such-device")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestFileRepoFIFOEviction(t *testing.T) {
	repo := newTestFileRepo(t, 3)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.Save(ctx, reading(fmt.Sprintf("dev-%d", i), base.Add(time.Duration(i)*time.Minute), 7))
		require.NoError(t, err)
	}

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// the two oldest records were evicted
	all, err := repo.List(ctx, agsmodels.ReadingFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, r := range all {
		assert.NotEqual(t, "dev-0", r.DeviceID)
		assert.NotEqual(t, "dev-1", r.DeviceID)
	}
}

func TestFileRepoListFilterAndLimit(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := repo.Save(ctx, reading("dev-a", base.Add(time.Duration(i)*time.Minute), float64(i)))
		require.NoError(t, err)
	}
	_, err := repo.Save(ctx, reading("dev-b", base, 5))
	require.NoError(t, err)

	got, err := repo.List(ctx, agsmodels.ReadingFilter{DeviceID: "dev-a"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// newest first
	assert.Equal(t, 3.0, *got[0].PH)
	assert.Equal(t, 2.0, *got[1].PH)

	from := base.Add(2 * time.Minute)
	got, err = repo.List(ctx, agsmodels.ReadingFilter{DeviceID: "dev-a", From: &from}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileRepoRawRoundTrip(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	ctx := context.Background()

	r := reading("dev-raw", time.Now().UTC(), 6.8)
	r.Raw = map[string]interface{}{"deviceId": "dev-raw", "ph_suelo": 6.8}
	_, err := repo.Save(ctx, r)
	require.NoError(t, err)

	latest, err := repo.Latest(ctx, "dev-raw")
	require.NoError(t, err)
	require.NotNil(t, latest.Raw)
	assert.Equal(t, "dev-raw", latest.Raw["deviceId"])
}

func TestFileRepoRawSizeCap(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	ctx := context.Background()

	r := reading("dev-big", time.Now().UTC(), 6.8)
	r.Raw = map[string]interface{}{"blob": strings.Repeat("x", 4096)}
	_, err := repo.Save(ctx, r)
	require.NoError(t, err)

	latest, err := repo.Latest(ctx, "dev-big")
	require.NoError(t, err)
	// truncated at the cap, kept as opaque encoded text
	require.NotNil(t, latest.Raw)
	_, truncated := latest.Raw["encoded"]
	assert.True(t, truncated)
}

func TestFileRepoDelete(t *testing.T) {
	repo := newTestFileRepo(t, 10)
	ctx := context.Background()

	id, err := repo.Save(ctx, reading("dev-1", time.Now().UTC(), 7))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), interfaces.ErrNotFound)

	_, err = repo.Latest(ctx, "dev-1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestFileRepoSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.json")
	ctx := context.Background()

	first := NewFileReadingRepository(path, 10, 256)
	_, err := first.Save(ctx, reading("dev-1", time.Now().UTC(), 6.5))
	require.NoError(t, err)

	second := NewFileReadingRepository(path, 10, 256)
	latest, err := second.Latest(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 6.5, *latest.PH)
}
