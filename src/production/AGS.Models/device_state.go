package agsmodels

import "time"

// MetricState is the live per-device-per-metric status record.
type MetricState struct {
	Status    MetricStatus `json:"status"`
	LastValue *float64     `json:"lastValue"`
	LastSeen  *time.Time   `json:"lastSeen"`
}

// DeviceState is a point-in-time snapshot of one device's metric states.
// Metrics never observed report no_sensor with nil value and seen time.
type DeviceState struct {
	DeviceID  string                 `json:"deviceId"`
	Metrics   map[Metric]MetricState `json:"metrics"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
