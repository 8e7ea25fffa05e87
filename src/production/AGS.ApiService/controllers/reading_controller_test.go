package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Config"
	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	implementation "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Implementation"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
	state "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.State"
)

type testEnv struct {
	router *gin.Engine
	states *state.DeviceStateStore
}

func newTestEnv(t *testing.T, repo interfaces.ReadingRepository) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if repo == nil {
		repo = implementation.NewFileReadingRepository(filepath.Join(t.TempDir(), "readings.json"), 100, 4096)
	}
	states := state.NewDeviceStateStore()
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json"})

	router := gin.New()
	NewReadingController(repo, states, log).RegisterRoutes(router)

	return &testEnv{router: router, states: states}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateReadingUpdatesState(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId":      "esp32-01",
		"humedad_suelo": 42.5,
		"ph_suelo":      "6.2", // numeric strings are coerced
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.ID)

	st, ok := env.states.Get("esp32-01")
	require.True(t, ok)
	assert.Equal(t, agsmodels.StatusOK, st.Metrics[agsmodels.MetricSoilMoisture].Status)
	assert.Equal(t, 42.5, *st.Metrics[agsmodels.MetricSoilMoisture].LastValue)
	assert.Equal(t, agsmodels.StatusOK, st.Metrics[agsmodels.MetricPH].Status)
	assert.Equal(t, 6.2, *st.Metrics[agsmodels.MetricPH].LastValue)
	// absent metrics stay untouched
	assert.Equal(t, agsmodels.StatusNoSensor, st.Metrics[agsmodels.MetricTemperature].Status)
}

func TestCreateReadingRejectsMissingDeviceID(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{"humedad_suelo": 42.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no state mutation before validation passes
	assert.Empty(t, env.states.List())
}

func TestCreateReadingRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest("POST", "/api/sensors/v1/readings", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateReadingIgnoresNonFiniteValues(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId":         "esp32-02",
		"humedad_suelo":    "not-a-number",
		"temperatura_aire": "",
		"ph_suelo":         6.9,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	st, ok := env.states.Get("esp32-02")
	require.True(t, ok)
	assert.Equal(t, agsmodels.StatusNoSensor, st.Metrics[agsmodels.MetricSoilMoisture].Status)
	assert.Equal(t, agsmodels.StatusNoSensor, st.Metrics[agsmodels.MetricTemperature].Status)
	assert.Equal(t, agsmodels.StatusOK, st.Metrics[agsmodels.MetricPH].Status)
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, *agsmodels.SensorReading) (string, error) {
	return "", errors.New("store exploded")
}
func (failingRepo) List(context.Context, agsmodels.ReadingFilter, int64) ([]agsmodels.SensorReading, error) {
	return nil, errors.New("store exploded")
}
func (failingRepo) Latest(context.Context, string) (*agsmodels.SensorReading, error) {
	return nil, errors.New("store exploded")
}
func (failingRepo) Delete(context.Context, string) error {
	return errors.New("store exploded")
}

func TestCreateReadingPersistenceFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, failingRepo{})

	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId":      "esp32-01",
		"humedad_suelo": 42.5,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, env.states.List())
}

func TestManualOverride(t *testing.T) {
	env := newTestEnv(t, nil)

	// sensor reading first
	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId": "esp32-01",
		"ph_suelo": 7.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// operator override flips the status to manual regardless of prior
	// state, without touching other metrics
	w = env.do("POST", "/api/sensors/v1/devices/esp32-01/manual-ph", map[string]interface{}{"ph_suelo": 6.2})
	require.Equal(t, http.StatusCreated, w.Code)

	st, ok := env.states.Get("esp32-01")
	require.True(t, ok)
	assert.Equal(t, agsmodels.StatusManual, st.Metrics[agsmodels.MetricPH].Status)
	assert.Equal(t, 6.2, *st.Metrics[agsmodels.MetricPH].LastValue)
	assert.Equal(t, agsmodels.StatusNoSensor, st.Metrics[agsmodels.MetricSoilMoisture].Status)
}

func TestManualOverrideRejectsMissingValue(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/api/sensors/v1/devices/esp32-01/manual-ph", map[string]interface{}{"ph_suelo": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("POST", "/api/sensors/v1/devices/esp32-01/manual-ph", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, env.states.List())
}

func TestListDevicesIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId":         "esp32-01",
		"temperatura_aire": 21.5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	first := env.do("GET", "/api/sensors/v1/devices", nil)
	second := env.do("GET", "/api/sensors/v1/devices", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestGetLatestReading(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/api/sensors/v1/devices/esp32-01/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId": "esp32-01",
		"ph_suelo": 6.0,
	}).Code)
	require.Equal(t, http.StatusCreated, env.do("POST", "/api/sensors/v1/readings", map[string]interface{}{
		"deviceId": "esp32-01",
		"ph_suelo": 6.5,
	}).Code)

	w = env.do("GET", "/api/sensors/v1/devices/esp32-01/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var latest agsmodels.SensorReading
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, "esp32-01", latest.DeviceID)
	require.NotNil(t, latest.PH)
	assert.Equal(t, 6.5, *latest.PH)
}

func TestCoerceNumber(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want float64
		ok   bool
	}{
		{"float", 42.5, 42.5, true},
		{"numeric string", "6.2", 6.2, true},
		{"padded string", " 7 ", 7, true},
		{"empty string", "", 0, false},
		{"garbage string", "abc", 0, false},
		{"nan string", "NaN", 0, false},
		{"inf string", "+Inf", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := coerceNumber(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
