package agent

import (
	"context"
	"errors"
	"time"

	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/flusher"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/outbox"
)

// Agent is the client-side delivery surface: direct sends when the API
// is reachable, outbox queuing when it is not, and a periodic flush loop
// draining the queue.
type Agent struct {
	client   flusher.Deliverer
	outbox   *outbox.Outbox
	flusher  *flusher.Flusher
	interval time.Duration
	logger   *logger.Logger
}

func New(client flusher.Deliverer, ob *outbox.Outbox, fl *flusher.Flusher, interval time.Duration, log *logger.Logger) *Agent {
	return &Agent{
		client:   client,
		outbox:   ob,
		flusher:  fl,
		interval: interval,
		logger:   log.WithComponent("sync-agent"),
	}
}

// Submit tries to deliver a reading directly; on failure the reading is
// queued for the flusher. queued is true when the reading landed in the
// outbox instead of the API. Enqueue errors mean local storage itself
// failed and are surfaced loudly.
func (a *Agent) Submit(ctx context.Context, reading agsmodels.SensorReading) (id string, queued bool, err error) {
	id, sendErr := a.client.CreateReading(ctx, reading)
	if sendErr == nil {
		return id, false, nil
	}

	a.logger.Logger.Warn().Err(sendErr).Str("device_id", reading.DeviceID).Msg("Direct delivery failed, queuing reading")
	item, qErr := a.outbox.Enqueue(reading)
	if qErr != nil {
		return "", false, qErr
	}
	return item.ID, true, nil
}

// Run triggers a flush pass on a fixed interval until the context is
// cancelled. Overlapping passes are skipped, not queued.
func (a *Agent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := a.flusher.Flush(ctx)
			if errors.Is(err, flusher.ErrFlushInProgress) {
				continue
			}
			if err != nil {
				a.logger.ErrorWithError(err, "Flush pass failed")
				continue
			}
			if len(results) > 0 {
				sent := 0
				for _, r := range results {
					if r.OK {
						sent++
					}
				}
				a.logger.Logger.Info().Int("processed", len(results)).Int("sent", sent).Msg("Flush pass completed")
			}
		}
	}
}
