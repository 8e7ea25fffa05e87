package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
)

// ErrItemNotFound is returned when a status transition targets an
// unknown item id.
var ErrItemNotFound = errors.New("outbox item not found")

// Outbox is the client-local durable queue of not-yet-delivered readings.
// The whole queue lives in one JSON array rewritten atomically on every
// mutation. Items are only ever status-transitioned, never removed.
type Outbox struct {
	mu   sync.Mutex
	path string
}

// Open binds an outbox to its backing file, verifying it is readable.
func Open(path string) (*Outbox, error) {
	o := &Outbox{path: path}
	if _, err := o.load(); err != nil {
		return nil, err
	}
	return o, nil
}

// Enqueue appends one pending reading to the queue.
func (o *Outbox) Enqueue(payload agsmodels.SensorReading) (agsmodels.OutboxItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	items, err := o.load()
	if err != nil {
		return agsmodels.OutboxItem{}, err
	}

	item := agsmodels.OutboxItem{
		ID:        primitive.NewObjectID().Hex(),
		Type:      agsmodels.OutboxTypeReading,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		Status:    agsmodels.OutboxPending,
	}
	items = append(items, item)

	if err := o.store(items); err != nil {
		return agsmodels.OutboxItem{}, err
	}
	return item, nil
}

// ListPending returns the items still awaiting delivery, oldest first.
func (o *Outbox) ListPending() ([]agsmodels.OutboxItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	items, err := o.load()
	if err != nil {
		return nil, err
	}

	var pending []agsmodels.OutboxItem
	for _, item := range items {
		if item.Status == agsmodels.OutboxPending {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// MarkStatus transitions one item's delivery status.
func (o *Outbox) MarkStatus(id string, status agsmodels.OutboxStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	items, err := o.load()
	if err != nil {
		return err
	}

	for i := range items {
		if items[i].ID == id {
			items[i].Status = status
			return o.store(items)
		}
	}
	return ErrItemNotFound
}

// All returns every item, delivered or not, for inspection.
func (o *Outbox) All() ([]agsmodels.OutboxItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load()
}

func (o *Outbox) load() ([]agsmodels.OutboxItem, error) {
	data, err := os.ReadFile(o.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var items []agsmodels.OutboxItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode outbox: %w", err)
	}
	return items, nil
}

func (o *Outbox) store(items []agsmodels.OutboxItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outbox: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return fmt.Errorf("create outbox dir: %w", err)
	}

	tmp := o.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	if err := os.Rename(tmp, o.path); err != nil {
		return fmt.Errorf("replace outbox: %w", err)
	}
	return nil
}
