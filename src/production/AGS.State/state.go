package state

import (
	"sort"
	"sync"
	"time"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
)

// DeviceStateStore is the in-memory table of live per-device metric
// states. All producers (HTTP ingestion, MQTT bridge) share one instance
// passed by reference; access is serialized by a RWMutex. Last writer by
// arrival order wins for a given (device, metric) key.
type DeviceStateStore struct {
	mu      sync.RWMutex
	devices map[string]*deviceRecord
}

type deviceRecord struct {
	metrics   map[agsmodels.Metric]agsmodels.MetricState
	updatedAt time.Time
}

// NewDeviceStateStore creates an empty store.
func NewDeviceStateStore() *DeviceStateStore {
	return &DeviceStateStore{
		devices: make(map[string]*deviceRecord),
	}
}

// UpsertMetric records an observation for one (device, metric) pair.
// Records are created lazily on first observation and never deleted.
func (s *DeviceStateStore) UpsertMetric(deviceID string, metric agsmodels.Metric, value float64, status agsmodels.MetricStatus, when time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.devices[deviceID]
	if !ok {
		rec = &deviceRecord{metrics: make(map[agsmodels.Metric]agsmodels.MetricState)}
		s.devices[deviceID] = rec
	}

	v := value
	seen := when
	rec.metrics[metric] = agsmodels.MetricState{
		Status:    status,
		LastValue: &v,
		LastSeen:  &seen,
	}
	rec.updatedAt = when
}

// Get returns a point-in-time snapshot of one device's state. Metrics
// never observed report no_sensor. The second return is false when the
// device has never been seen.
func (s *DeviceStateStore) Get(deviceID string) (agsmodels.DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.devices[deviceID]
	if !ok {
		return agsmodels.DeviceState{}, false
	}
	return snapshot(deviceID, rec), true
}

// List returns snapshots of every known device, ordered by device id so
// repeated reads with no intervening writes are identical.
func (s *DeviceStateStore) List() []agsmodels.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]agsmodels.DeviceState, 0, len(s.devices))
	for id, rec := range s.devices {
		out = append(out, snapshot(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// snapshot copies a device record, filling unobserved metrics from the
// catalogue. Caller must hold at least the read lock.
func snapshot(deviceID string, rec *deviceRecord) agsmodels.DeviceState {
	st := agsmodels.DeviceState{
		DeviceID:  deviceID,
		Metrics:   make(map[agsmodels.Metric]agsmodels.MetricState, len(agsmodels.Metrics)),
		UpdatedAt: rec.updatedAt,
	}
	for _, m := range agsmodels.Metrics {
		ms, ok := rec.metrics[m]
		if !ok {
			st.Metrics[m] = agsmodels.MetricState{Status: agsmodels.StatusNoSensor}
			continue
		}
		// copy pointees so callers cannot mutate the store
		v := *ms.LastValue
		seen := *ms.LastSeen
		st.Metrics[m] = agsmodels.MetricState{Status: ms.Status, LastValue: &v, LastSeen: &seen}
	}
	return st
}
