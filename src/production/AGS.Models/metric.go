package agsmodels

// Metric identifies one measured quantity reported by a field device.
type Metric string

const (
	MetricSoilMoisture Metric = "soilMoisture"
	MetricTemperature  Metric = "temperature"
	MetricAirHumidity  Metric = "airHumidity"
	MetricPH           Metric = "ph"
)

// Metrics is the fixed catalogue of metrics a device can report.
var Metrics = []Metric{MetricSoilMoisture, MetricTemperature, MetricAirHumidity, MetricPH}

// bodyFields maps each metric to its field name in HTTP reading payloads.
// Field names follow the device firmware wire format.
var bodyFields = map[Metric]string{
	MetricSoilMoisture: "humedad_suelo",
	MetricTemperature:  "temperatura_aire",
	MetricAirHumidity:  "humedad_aire",
	MetricPH:           "ph_suelo",
}

// topicAliases maps the metric segment of an MQTT topic to a catalogue
// metric. Devices publish short Spanish names.
var topicAliases = map[string]Metric{
	"humedad":      MetricSoilMoisture,
	"temperatura":  MetricTemperature,
	"humedad_aire": MetricAirHumidity,
	"ph":           MetricPH,
	"ph_suelo":     MetricPH,
}

// BodyField returns the HTTP payload field name for a metric.
func (m Metric) BodyField() string {
	return bodyFields[m]
}

// MetricFromTopic resolves the metric segment of a pub/sub topic.
func MetricFromTopic(segment string) (Metric, bool) {
	m, ok := topicAliases[segment]
	return m, ok
}

// MetricStatus is the per-device-per-metric status.
type MetricStatus string

const (
	// StatusOK means the most recent value came from an automated
	// ingestion path (HTTP reading or pub/sub bridge).
	StatusOK MetricStatus = "ok"
	// StatusManual means the most recent value was an operator override.
	StatusManual MetricStatus = "manual"
	// StatusNoSensor means no reading was ever received for the metric.
	StatusNoSensor MetricStatus = "no_sensor"
)
