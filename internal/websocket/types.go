package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/moji-sentinel/internal/mojibake"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeScanCompleted represents a finished detection scan
	EventTypeScanCompleted EventType = "scan.completed"
	// EventTypeCorpusProgress represents corpus processing progress
	EventTypeCorpusProgress EventType = "corpus.progress"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// ScanEvent describes one completed detection scan. Samples are included
// only when the hub is configured to expose scanned content.
type ScanEvent struct {
	RequestID    string              `json:"request_id,omitempty"`
	Source       string              `json:"source"`
	HasMojibake  bool                `json:"has_mojibake"`
	Confidence   float64             `json:"confidence"`
	IssueCount   int                 `json:"issue_count"`
	Statistics   mojibake.Statistics `json:"statistics"`
	Samples      []string            `json:"samples,omitempty"`
	ProcessingMS float64             `json:"processing_ms"`
}

// CorpusProgressEvent reports batch pipeline progress
type CorpusProgressEvent struct {
	Corpus    string  `json:"corpus"`
	Processed int64   `json:"processed"`
	Total     int64   `json:"total"`
	Flagged   int64   `json:"flagged"`
	Failed    int64   `json:"failed"`
	Percent   float64 `json:"percent"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalScans       int64  `json:"total_scans"`
	TotalDetections  int64  `json:"total_detections"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows which scan events a client receives
type EventFilter struct {
	MinConfidence float64  `json:"min_confidence,omitempty"`
	FlaggedOnly   bool     `json:"flagged_only,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
