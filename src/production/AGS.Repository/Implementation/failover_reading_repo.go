package implementation

import (
	"context"
	"errors"

	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
)

// FailoverReadingRepository composes the primary document store with the
// bounded local file store. Reachability is judged per request: a primary
// failure degrades this request to the fallback, the next request tries
// the primary again. A nil primary means the service booted without a
// configured store and runs on the fallback alone.
type FailoverReadingRepository struct {
	primary  interfaces.ReadingRepository
	fallback interfaces.ReadingRepository
	logger   *logger.Logger
}

func NewFailoverReadingRepository(primary, fallback interfaces.ReadingRepository, log *logger.Logger) *FailoverReadingRepository {
	return &FailoverReadingRepository{
		primary:  primary,
		fallback: fallback,
		logger:   log.WithComponent("failover-repo"),
	}
}

func (r *FailoverReadingRepository) Save(ctx context.Context, reading *agsmodels.SensorReading) (string, error) {
	if r.primary == nil {
		return r.fallback.Save(ctx, reading)
	}
	id, err := r.primary.Save(ctx, reading)
	if err == nil {
		return id, nil
	}
	r.logger.Logger.Warn().Err(err).Str("device_id", reading.DeviceID).Msg("Primary store unreachable, saving to local fallback")
	return r.fallback.Save(ctx, reading)
}

func (r *FailoverReadingRepository) List(ctx context.Context, filter agsmodels.ReadingFilter, limit int64) ([]agsmodels.SensorReading, error) {
	if r.primary == nil {
		return r.fallback.List(ctx, filter, limit)
	}
	readings, err := r.primary.List(ctx, filter, limit)
	if err == nil {
		return readings, nil
	}
	r.logger.Logger.Warn().Err(err).Msg("Primary store unreachable, listing from local fallback")
	return r.fallback.List(ctx, filter, limit)
}

func (r *FailoverReadingRepository) Latest(ctx context.Context, deviceID string) (*agsmodels.SensorReading, error) {
	if r.primary == nil {
		return r.fallback.Latest(ctx, deviceID)
	}
	reading, err := r.primary.Latest(ctx, deviceID)
	if err == nil || errors.Is(err, interfaces.ErrNotFound) {
		return reading, err
	}
	r.logger.Logger.Warn().Err(err).Str("device_id", deviceID).Msg("Primary store unreachable, reading from local fallback")
	return r.fallback.Latest(ctx, deviceID)
}

func (r *FailoverReadingRepository) Delete(ctx context.Context, id string) error {
	if r.primary == nil {
		return r.fallback.Delete(ctx, id)
	}
	err := r.primary.Delete(ctx, id)
	if err == nil || errors.Is(err, interfaces.ErrNotFound) {
		return err
	}
	r.logger.Logger.Warn().Err(err).Str("id", id).Msg("Primary store unreachable, deleting from local fallback")
	return r.fallback.Delete(ctx, id)
}
