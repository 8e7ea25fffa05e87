package agsmodels

import "time"

// OutboxItemType discriminates queued payloads. Only readings are queued
// today; photo uploads may join later.
type OutboxItemType string

const OutboxTypeReading OutboxItemType = "reading"

// OutboxStatus is the delivery state of a queued item.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxError   OutboxStatus = "error"
)

// OutboxItem is a client-local queued intent to deliver one reading.
// Items are never removed, only status-transitioned, so the queue doubles
// as an audit trail.
type OutboxItem struct {
	ID        string         `json:"id"`
	Type      OutboxItemType `json:"type"`
	Payload   SensorReading  `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Status    OutboxStatus   `json:"status"`
}
