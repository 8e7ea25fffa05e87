package interfaces

import (
	"context"
	"errors"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
)

// ErrNotFound is returned when a lookup matches no persisted reading.
var ErrNotFound = errors.New("reading not found")

// ReadingRepository is the durable store for sensor readings.
type ReadingRepository interface {
	// Save persists one immutable reading and returns its id.
	Save(ctx context.Context, reading *agsmodels.SensorReading) (string, error)

	// List returns readings matching the filter, newest first, capped at limit.
	List(ctx context.Context, filter agsmodels.ReadingFilter, limit int64) ([]agsmodels.SensorReading, error)

	// Latest returns the most recent reading for a device, or ErrNotFound.
	Latest(ctx context.Context, deviceID string) (*agsmodels.SensorReading, error)

	// Delete removes a reading by id. Operator-only escape hatch.
	Delete(ctx context.Context, id string) error
}
