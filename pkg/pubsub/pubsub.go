package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the scanner
const (
	TopicScanStatus = "scan_status"
	TopicScanResult = "scan_result"
)

// Scan states carried in ScanStatus.State and as event types
const (
	StateScanning = "scanning"
	StateReady    = "ready"
	StateError    = "error"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic, increasing
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	Close() error
}

// ScanStatus describes where the current scan is
type ScanStatus struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Root    string `json:"root"`
	Reason  string `json:"reason,omitempty"` // what triggered the scan
}

// ScanSummary is published after every successful scan
type ScanSummary struct {
	Root          string `json:"root"`
	Files         int    `json:"files"`
	Visited       int    `json:"visited"`
	ExcludedFiles int    `json:"excludedFiles"`
	ExcludedDirs  int    `json:"excludedDirs"`
	Generation    int    `json:"generation"` // number of completed scans
}
