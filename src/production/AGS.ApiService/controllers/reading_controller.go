package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
	state "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.State"
)

// manualRoutes maps the operator-override endpoints to their metric.
// Path suffixes use the short device-facing metric names.
var manualRoutes = map[string]agsmodels.Metric{
	"manual-ph":           agsmodels.MetricPH,
	"manual-humedad":      agsmodels.MetricSoilMoisture,
	"manual-temperatura":  agsmodels.MetricTemperature,
	"manual-humedad_aire": agsmodels.MetricAirHumidity,
}

// ReadingController handles sensor ingestion and device state requests
type ReadingController struct {
	readingRepo interfaces.ReadingRepository
	states      *state.DeviceStateStore
	logger      *logger.Logger
}

// NewReadingController creates a new reading controller
func NewReadingController(readingRepo interfaces.ReadingRepository, states *state.DeviceStateStore, log *logger.Logger) *ReadingController {
	return &ReadingController{
		readingRepo: readingRepo,
		states:      states,
		logger:      log.WithComponent("reading-controller"),
	}
}

// RegisterRoutes registers the sensor routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	sensors := router.Group("/api/sensors/v1")
	{
		sensors.POST("/readings", c.CreateReading)
		sensors.GET("/devices", c.ListDevices)
		sensors.GET("/devices/:device_id/latest", c.GetLatestReading)
		for suffix, metric := range manualRoutes {
			sensors.POST("/devices/:device_id/"+suffix, c.manualHandler(metric))
		}
	}
}

// CreateReading ingests one sensor reading: the reading is persisted
// first, then the device state is upserted for the metrics present. The
// two writes are not transactional; a persistence failure leaves device
// state untouched.
func (c *ReadingController) CreateReading(ctx *gin.Context) {
	var body map[string]interface{}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	deviceID := strings.TrimSpace(stringField(body, "deviceId"))
	if deviceID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}

	reading := agsmodels.SensorReading{
		DeviceID:  deviceID,
		Timestamp: timestampField(body, time.Now().UTC()),
		Raw:       body,
	}

	values := make(map[agsmodels.Metric]float64)
	for _, m := range agsmodels.Metrics {
		if v, ok := coerceNumber(body[m.BodyField()]); ok {
			reading.SetValue(m, v)
			values[m] = v
		}
	}

	id, err := c.readingRepo.Save(ctx.Request.Context(), &reading)
	if err != nil {
		c.logger.Logger.Error().Err(err).Str("device_id", deviceID).Msg("Sensor save failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Sensor save failed"})
		return
	}

	now := time.Now().UTC()
	for m, v := range values {
		c.states.UpsertMetric(deviceID, m, v, agsmodels.StatusOK, now)
	}

	ctx.JSON(http.StatusCreated, gin.H{"ok": true, "id": id})
}

// manualHandler builds the handler for one operator-override endpoint.
// Manual entries persist like sensor readings but mark the metric status
// manual so they stay visually distinct from sensor-sourced data.
func (c *ReadingController) manualHandler(metric agsmodels.Metric) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		deviceID := strings.TrimSpace(ctx.Param("device_id"))
		if deviceID == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
			return
		}

		var body map[string]interface{}
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		field := metric.BodyField()
		value, ok := coerceNumber(body[field])
		if !ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": field + " required and must be number"})
			return
		}

		now := time.Now().UTC()
		reading := agsmodels.SensorReading{
			DeviceID:  deviceID,
			Timestamp: timestampField(body, now),
			Raw:       body,
		}
		reading.SetValue(metric, value)

		id, err := c.readingRepo.Save(ctx.Request.Context(), &reading)
		if err != nil {
			c.logger.Logger.Error().Err(err).Str("device_id", deviceID).Str("metric", string(metric)).Msg("Manual reading save failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Manual save failed"})
			return
		}

		c.states.UpsertMetric(deviceID, metric, value, agsmodels.StatusManual, now)

		ctx.JSON(http.StatusCreated, gin.H{"ok": true, "id": id})
	}
}

// ListDevices returns all known device state records
func (c *ReadingController) ListDevices(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"devices": c.states.List()})
}

// GetLatestReading returns the most recent persisted reading for a device
func (c *ReadingController) GetLatestReading(ctx *gin.Context) {
	deviceID := ctx.Param("device_id")

	reading, err := c.readingRepo.Latest(ctx.Request.Context(), deviceID)
	if errors.Is(err, interfaces.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "No readings for device"})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch latest"})
		return
	}

	ctx.JSON(http.StatusOK, reading)
}

// coerceNumber accepts a metric value from loosely-typed input: JSON
// numbers and numeric strings pass, anything else (including NaN and
// infinities) is treated as absent.
func coerceNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringField(body map[string]interface{}, key string) string {
	if s, ok := body[key].(string); ok {
		return s
	}
	return ""
}

// timestampField parses an optional RFC3339 timestamp, defaulting to the
// arrival time.
func timestampField(body map[string]interface{}, fallback time.Time) time.Time {
	if s, ok := body["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}
