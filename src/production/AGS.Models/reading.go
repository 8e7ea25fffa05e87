package agsmodels

import (
	"time"
)

// SensorReading is one ingested observation. Readings are immutable once
// persisted; metric fields are independently nullable.
type SensorReading struct {
	ID           string                 `bson:"_id,omitempty" json:"id,omitempty"`
	DeviceID     string                 `bson:"device_id" json:"deviceId"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	SoilMoisture *float64               `bson:"humedad_suelo,omitempty" json:"humedad_suelo,omitempty"`
	Temperature  *float64               `bson:"temperatura_aire,omitempty" json:"temperatura_aire,omitempty"`
	AirHumidity  *float64               `bson:"humedad_aire,omitempty" json:"humedad_aire,omitempty"`
	PH           *float64               `bson:"ph_suelo,omitempty" json:"ph_suelo,omitempty"`
	Raw          map[string]interface{} `bson:"raw,omitempty" json:"raw,omitempty"`
}

// Value returns the reading's value for a metric, nil when absent.
func (r *SensorReading) Value(m Metric) *float64 {
	switch m {
	case MetricSoilMoisture:
		return r.SoilMoisture
	case MetricTemperature:
		return r.Temperature
	case MetricAirHumidity:
		return r.AirHumidity
	case MetricPH:
		return r.PH
	}
	return nil
}

// SetValue sets the reading's value for a metric.
func (r *SensorReading) SetValue(m Metric, v float64) {
	val := v
	switch m {
	case MetricSoilMoisture:
		r.SoilMoisture = &val
	case MetricTemperature:
		r.Temperature = &val
	case MetricAirHumidity:
		r.AirHumidity = &val
	case MetricPH:
		r.PH = &val
	}
}

// ReadingFilter narrows List queries on the persistence layer.
type ReadingFilter struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
}
