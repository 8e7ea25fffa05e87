package implementation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
)

// FileReadingRepository is the degraded local fallback store: a single
// JSON array bounded to the most recent MaxRecords entries, oldest evicted
// first. Every write rewrites the whole collection through a temp file and
// rename so a failed write never leaves a truncated file behind.
type FileReadingRepository struct {
	mu          sync.Mutex
	path        string
	maxRecords  int
	maxRawBytes int
}

// fileRecord is the on-disk shape of one fallback entry. The raw payload
// is kept as size-capped base64 text, never raw bytes.
type fileRecord struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	DeviceID     string    `json:"deviceId"`
	Timestamp    time.Time `json:"timestamp"`
	SoilMoisture *float64  `json:"humedad_suelo,omitempty"`
	Temperature  *float64  `json:"temperatura_aire,omitempty"`
	AirHumidity  *float64  `json:"humedad_aire,omitempty"`
	PH           *float64  `json:"ph_suelo,omitempty"`
	Raw          string    `json:"raw,omitempty"`
}

func NewFileReadingRepository(path string, maxRecords, maxRawBytes int) *FileReadingRepository {
	return &FileReadingRepository{
		path:        path,
		maxRecords:  maxRecords,
		maxRawBytes: maxRawBytes,
	}
}

func (r *FileReadingRepository) Save(_ context.Context, reading *agsmodels.SensorReading) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return "", err
	}

	if reading.ID == "" {
		reading.ID = "f-" + primitive.NewObjectID().Hex()
	}
	records = append(records, r.toRecord(reading))

	// FIFO eviction keeps only the most recent entries
	if len(records) > r.maxRecords {
		records = records[len(records)-r.maxRecords:]
	}

	if err := r.store(records); err != nil {
		return "", err
	}
	return reading.ID, nil
}

func (r *FileReadingRepository) List(_ context.Context, filter agsmodels.ReadingFilter, limit int64) ([]agsmodels.SensorReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	var out []agsmodels.SensorReading
	for i := range records {
		rec := &records[i]
		if filter.DeviceID != "" && rec.DeviceID != filter.DeviceID {
			continue
		}
		if filter.From != nil && rec.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.Timestamp.After(*filter.To) {
			continue
		}
		out = append(out, r.toReading(rec))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FileReadingRepository) Latest(ctx context.Context, deviceID string) (*agsmodels.SensorReading, error) {
	readings, err := r.List(ctx, agsmodels.ReadingFilter{DeviceID: deviceID}, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &readings[0], nil
}

func (r *FileReadingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	kept := records[:0]
	found := false
	for _, rec := range records {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return interfaces.ErrNotFound
	}
	return r.store(kept)
}

// Count reports how many records the file currently holds.
func (r *FileReadingRepository) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *FileReadingRepository) load() ([]fileRecord, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode fallback store: %w", err)
	}
	return records, nil
}

func (r *FileReadingRepository) store(records []fileRecord) error {
	if records == nil {
		records = []fileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fallback store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create fallback dir: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write fallback store: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace fallback store: %w", err)
	}
	return nil
}

func (r *FileReadingRepository) toRecord(reading *agsmodels.SensorReading) fileRecord {
	return fileRecord{
		ID:           reading.ID,
		CreatedAt:    time.Now().UTC(),
		DeviceID:     reading.DeviceID,
		Timestamp:    reading.Timestamp,
		SoilMoisture: reading.SoilMoisture,
		Temperature:  reading.Temperature,
		AirHumidity:  reading.AirHumidity,
		PH:           reading.PH,
		Raw:          r.encodeRaw(reading.Raw),
	}
}

func (r *FileReadingRepository) toReading(rec *fileRecord) agsmodels.SensorReading {
	return agsmodels.SensorReading{
		ID:           rec.ID,
		DeviceID:     rec.DeviceID,
		Timestamp:    rec.Timestamp,
		SoilMoisture: rec.SoilMoisture,
		Temperature:  rec.Temperature,
		AirHumidity:  rec.AirHumidity,
		PH:           rec.PH,
		Raw:          decodeRaw(rec.Raw),
	}
}

// encodeRaw serializes the audit payload as base64 text, truncated at the
// configured byte cap before encoding.
func (r *FileReadingRepository) encodeRaw(raw map[string]interface{}) string {
	if len(raw) == 0 {
		return ""
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	if r.maxRawBytes > 0 && len(data) > r.maxRawBytes {
		data = data[:r.maxRawBytes]
	}
	return base64.StdEncoding.EncodeToString(data)
}

func decodeRaw(encoded string) map[string]interface{} {
	if encoded == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		// truncated at the cap; keep the text for audit purposes
		return map[string]interface{}{"encoded": encoded}
	}
	return raw
}
