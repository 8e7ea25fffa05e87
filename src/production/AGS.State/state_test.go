package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
)

func TestUpsertAndGet(t *testing.T) {
	s := NewDeviceStateStore()
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.UpsertMetric("esp32-01", agsmodels.MetricSoilMoisture, 42.5, agsmodels.StatusOK, when)

	st, ok := s.Get("esp32-01")
	require.True(t, ok)
	assert.Equal(t, "esp32-01", st.DeviceID)

	moisture := st.Metrics[agsmodels.MetricSoilMoisture]
	assert.Equal(t, agsmodels.StatusOK, moisture.Status)
	require.NotNil(t, moisture.LastValue)
	assert.Equal(t, 42.5, *moisture.LastValue)
	require.NotNil(t, moisture.LastSeen)
	assert.Equal(t, when, *moisture.LastSeen)

	// unobserved metrics report no_sensor with nil value and seen time
	ph := st.Metrics[agsmodels.MetricPH]
	assert.Equal(t, agsmodels.StatusNoSensor, ph.Status)
	assert.Nil(t, ph.LastValue)
	assert.Nil(t, ph.LastSeen)
}

func TestGetUnknownDevice(t *testing.T) {
	s := NewDeviceStateStore()
	_, ok := s.Get("never-seen")
	assert.False(t, ok)
}

func TestManualOverrideDoesNotTouchOtherMetrics(t *testing.T) {
	s := NewDeviceStateStore()
	now := time.Now().UTC()

	s.UpsertMetric("dev-1", agsmodels.MetricSoilMoisture, 40, agsmodels.StatusOK, now)
	s.UpsertMetric("dev-1", agsmodels.MetricPH, 7.1, agsmodels.StatusOK, now)
	s.UpsertMetric("dev-1", agsmodels.MetricPH, 6.2, agsmodels.StatusManual, now.Add(time.Second))

	st, ok := s.Get("dev-1")
	require.True(t, ok)
	assert.Equal(t, agsmodels.StatusManual, st.Metrics[agsmodels.MetricPH].Status)
	assert.Equal(t, 6.2, *st.Metrics[agsmodels.MetricPH].LastValue)
	assert.Equal(t, agsmodels.StatusOK, st.Metrics[agsmodels.MetricSoilMoisture].Status)
	assert.Equal(t, 40.0, *st.Metrics[agsmodels.MetricSoilMoisture].LastValue)
}

func TestLastWriterWinsByArrivalOrder(t *testing.T) {
	s := NewDeviceStateStore()
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	s.UpsertMetric("dev-1", agsmodels.MetricTemperature, 21, agsmodels.StatusOK, newer)
	// a late-arriving older observation still wins: arrival order, not
	// the reading's own timestamp
	s.UpsertMetric("dev-1", agsmodels.MetricTemperature, 19, agsmodels.StatusOK, older)

	st, _ := s.Get("dev-1")
	assert.Equal(t, 19.0, *st.Metrics[agsmodels.MetricTemperature].LastValue)
	assert.Equal(t, older, *st.Metrics[agsmodels.MetricTemperature].LastSeen)
}

func TestListIsDeterministic(t *testing.T) {
	s := NewDeviceStateStore()
	now := time.Now().UTC()
	s.UpsertMetric("b-dev", agsmodels.MetricPH, 6.5, agsmodels.StatusOK, now)
	s.UpsertMetric("a-dev", agsmodels.MetricTemperature, 22, agsmodels.StatusOK, now)

	first := s.List()
	second := s.List()
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "a-dev", first[0].DeviceID)
	assert.Equal(t, "b-dev", first[1].DeviceID)
}

func TestConcurrentUpsertsToDistinctKeys(t *testing.T) {
	s := NewDeviceStateStore()
	now := time.Now().UTC()

	const devices = 16
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		for _, m := range agsmodels.Metrics {
			wg.Add(1)
			go func(i int, m agsmodels.Metric) {
				defer wg.Done()
				s.UpsertMetric(fmt.Sprintf("dev-%02d", i), m, float64(i), agsmodels.StatusOK, now)
			}(i, m)
		}
	}
	wg.Wait()

	all := s.List()
	require.Len(t, all, devices)
	for _, st := range all {
		for _, m := range agsmodels.Metrics {
			ms := st.Metrics[m]
			assert.Equal(t, agsmodels.StatusOK, ms.Status, "device %s metric %s", st.DeviceID, m)
			require.NotNil(t, ms.LastValue)
		}
	}
}

func TestSnapshotIsIsolatedFromStore(t *testing.T) {
	s := NewDeviceStateStore()
	now := time.Now().UTC()
	s.UpsertMetric("dev-1", agsmodels.MetricPH, 7.0, agsmodels.StatusOK, now)

	st, _ := s.Get("dev-1")
	*st.Metrics[agsmodels.MetricPH].LastValue = 99

	again, _ := s.Get("dev-1")
	assert.Equal(t, 7.0, *again.Metrics[agsmodels.MetricPH].LastValue)
}
