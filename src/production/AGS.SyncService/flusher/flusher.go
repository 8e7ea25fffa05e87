package flusher

import (
	"context"
	"errors"
	"sync/atomic"

	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/outbox"
)

// ErrFlushInProgress is returned when a flush pass is already running.
// Flushes are single-flight per outbox to avoid duplicate delivery.
var ErrFlushInProgress = errors.New("flush already in progress")

// Deliverer sends one reading to the ingestion endpoint.
type Deliverer interface {
	CreateReading(ctx context.Context, reading agsmodels.SensorReading) (string, error)
}

// FlushResult reports the outcome for one outbox item.
type FlushResult struct {
	ID  string
	OK  bool
	Err string
}

// Flusher drains pending outbox items sequentially against the ingestion
// endpoint. A cancelled pass leaves unprocessed items pending; they are
// picked up by the next pass.
type Flusher struct {
	outbox   *outbox.Outbox
	client   Deliverer
	policy   RetryPolicy
	inFlight atomic.Bool
	logger   *logger.Logger
}

func New(ob *outbox.Outbox, client Deliverer, policy RetryPolicy, log *logger.Logger) *Flusher {
	return &Flusher{
		outbox: ob,
		client: client,
		policy: policy,
		logger: log.WithComponent("sync-flusher"),
	}
}

// Flush makes one pass over the pending items. Each item gets up to the
// policy's attempt ceiling; on first success it is marked sent, on
// exhaustion marked error, and the pass moves on either way.
func (f *Flusher) Flush(ctx context.Context) ([]FlushResult, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return nil, ErrFlushInProgress
	}
	defer f.inFlight.Store(false)

	items, err := f.outbox.ListPending()
	if err != nil {
		return nil, err
	}

	results := make([]FlushResult, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			// abandoned pass, remaining items stay pending
			break
		}

		if item.Type != agsmodels.OutboxTypeReading {
			if err := f.outbox.MarkStatus(item.ID, agsmodels.OutboxError); err != nil {
				return results, err
			}
			results = append(results, FlushResult{ID: item.ID, Err: "unsupported type"})
			continue
		}

		sent, lastErr := f.deliver(ctx, item)
		switch {
		case sent:
			if err := f.outbox.MarkStatus(item.ID, agsmodels.OutboxSent); err != nil {
				return results, err
			}
			results = append(results, FlushResult{ID: item.ID, OK: true})
		case ctx.Err() != nil:
			// cancelled mid-item, leave it pending
		default:
			f.logger.Logger.Warn().Str("item_id", item.ID).Str("error", lastErr).Int("attempts", f.policy.MaxAttempts).Msg("Outbox item exhausted retries")
			if err := f.outbox.MarkStatus(item.ID, agsmodels.OutboxError); err != nil {
				return results, err
			}
			results = append(results, FlushResult{ID: item.ID, Err: lastErr})
		}
	}
	return results, nil
}

func (f *Flusher) deliver(ctx context.Context, item agsmodels.OutboxItem) (bool, string) {
	rs := retryState{policy: f.policy}
	lastErr := ""
	for rs.Next(ctx) {
		if _, err := f.client.CreateReading(ctx, item.Payload); err != nil {
			lastErr = err.Error()
			f.logger.Logger.Debug().Str("item_id", item.ID).Int("attempt", rs.Attempts()).Err(err).Msg("Delivery attempt failed")
			continue
		}
		return true, ""
	}
	return false, lastErr
}
